package config

import "github.com/xraph/queuectl"

// Resolve builds a queuectl.Config from p. Missing keys take their
// defaults. Any invalid value fails the whole resolution.
func Resolve(p Provider) (queuectl.Config, error) {
	for _, key := range Keys() {
		if err := Validate(key, Lookup(p, key)); err != nil {
			return queuectl.Config{}, err
		}
	}

	cfg := queuectl.NewConfig(
		queuectl.WithMaxRetries(integer(Lookup(p, KeyMaxRetries))),
		queuectl.WithBackoffBase(number(Lookup(p, KeyBackoffBase))),
		queuectl.WithPollInterval(seconds(Lookup(p, KeyPollInterval))),
		queuectl.WithMaxWorkers(integer(Lookup(p, KeyMaxWorkers))),
		queuectl.WithHeartbeatInterval(seconds(Lookup(p, KeyHeartbeatInterval))),
		queuectl.WithWorkerTTL(seconds(Lookup(p, KeyWorkerTTL))),
		queuectl.WithShutdownTimeout(seconds(Lookup(p, KeyShutdownTimeout))),
	)
	if err := cfg.Validate(); err != nil {
		return queuectl.Config{}, err
	}
	return cfg, nil
}

// Backend returns the configured store backend and DSN.
func Backend(p Provider) (name, dsn string) {
	return Lookup(p, KeyStore), Lookup(p, KeyDSN)
}

// Events returns the AMQP URL and exchange lifecycle events are
// published to. An empty URL disables publishing.
func Events(p Provider) (url, exchange string) {
	return Lookup(p, KeyAMQPURL), Lookup(p, KeyAMQPExchange)
}

// Snapshot returns the effective value of every key.
func Snapshot(p Provider) map[string]string {
	out := make(map[string]string, len(keys))
	for _, key := range Keys() {
		out[key] = Lookup(p, key)
	}
	return out
}
