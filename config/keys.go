package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/xraph/queuectl"
)

// Recognised keys.
const (
	KeyMaxRetries        = "max_retries"
	KeyBackoffBase       = "backoff_base"
	KeyPollInterval      = "poll_interval_seconds"
	KeyMaxWorkers        = "max_workers"
	KeyHeartbeatInterval = "heartbeat_interval_seconds"
	KeyWorkerTTL         = "worker_ttl_seconds"
	KeyShutdownTimeout   = "shutdown_timeout_seconds"
	KeyStore             = "store"
	KeyDSN               = "dsn"
	KeyAMQPURL           = "amqp_url"
	KeyAMQPExchange      = "amqp_exchange"
)

// Backends accepted by the store key.
var Backends = []string{"sqlite", "postgres", "redis", "mongo"}

type keySpec struct {
	name     string
	def      string
	validate func(string) error
}

var keys = []keySpec{
	{KeyMaxRetries, "3", positiveInt},
	{KeyBackoffBase, "2", greaterThanOne},
	{KeyPollInterval, "2", positiveFloat},
	{KeyMaxWorkers, "10", positiveInt},
	{KeyHeartbeatInterval, "5", nonNegativeFloat},
	{KeyWorkerTTL, "30", positiveFloat},
	{KeyShutdownTimeout, "30", positiveFloat},
	{KeyStore, "sqlite", backend},
	{KeyDSN, "", nil},
	{KeyAMQPURL, "", nil},
	{KeyAMQPExchange, "queuectl.events", nonEmpty},
}

// Keys returns every recognised key in display order.
func Keys() []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.name
	}
	return out
}

// Default returns the built-in value for key.
func Default(key string) (string, bool) {
	k, ok := lookup(key)
	if !ok {
		return "", false
	}
	return k.def, true
}

// Validate checks value against the rules for key.
func Validate(key, value string) error {
	k, ok := lookup(key)
	if !ok {
		return fmt.Errorf("%w: unknown key %q", queuectl.ErrInvalidConfig, key)
	}
	if k.validate == nil {
		return nil
	}
	if err := k.validate(value); err != nil {
		return fmt.Errorf("%w: %s: %v", queuectl.ErrInvalidConfig, key, err)
	}
	return nil
}

func lookup(key string) (keySpec, bool) {
	for _, k := range keys {
		if k.name == key {
			return k, true
		}
	}
	return keySpec{}, false
}

func positiveInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("not an integer: %q", v)
	}
	if n < 1 {
		return fmt.Errorf("must be >= 1, got %d", n)
	}
	return nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", v)
	}
	return f, nil
}

func greaterThanOne(v string) error {
	f, err := parseFloat(v)
	if err != nil {
		return err
	}
	if f <= 1 {
		return fmt.Errorf("must be > 1, got %g", f)
	}
	return nil
}

func positiveFloat(v string) error {
	f, err := parseFloat(v)
	if err != nil {
		return err
	}
	if f <= 0 {
		return fmt.Errorf("must be > 0, got %g", f)
	}
	return nil
}

func nonNegativeFloat(v string) error {
	f, err := parseFloat(v)
	if err != nil {
		return err
	}
	if f < 0 {
		return fmt.Errorf("must be >= 0, got %g", f)
	}
	return nil
}

func nonEmpty(v string) error {
	if v == "" {
		return errors.New("must not be empty")
	}
	return nil
}

func backend(v string) error {
	for _, b := range Backends {
		if v == b {
			return nil
		}
	}
	return fmt.Errorf("unknown backend %q", v)
}

// The helpers below are only called on validated values.

func integer(v string) int {
	n, _ := strconv.Atoi(v) //nolint:errcheck // validated
	return n
}

func number(v string) float64 {
	f, _ := strconv.ParseFloat(v, 64) //nolint:errcheck // validated
	return f
}

func seconds(v string) time.Duration {
	return time.Duration(number(v) * float64(time.Second))
}
