package config

import (
	"os"
	"strings"
)

// Provider supplies raw configuration values by key.
type Provider interface {
	Get(key string) (string, bool)
}

// Store is a Provider that can persist changes.
type Store interface {
	Provider

	// Set validates and stages a value.
	Set(key, value string) error

	// Save persists staged values.
	Save() error
}

// Map is an in-memory Provider.
type Map map[string]string

// Get implements Provider.
func (m Map) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// EnvPrefix is prepended to upper-cased keys by Env.
const EnvPrefix = "QUEUECTL_"

type envProvider struct {
	lookup func(string) (string, bool)
}

// Env returns a Provider reading QUEUECTL_<KEY> environment variables,
// e.g. QUEUECTL_MAX_RETRIES. Empty variables are ignored.
func Env() Provider {
	return envProvider{lookup: os.LookupEnv}
}

func (e envProvider) Get(key string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + strings.ToUpper(key))
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

type chain []Provider

// Chain returns a Provider consulting providers in order. Nil entries
// are skipped.
func Chain(providers ...Provider) Provider {
	out := make(chain, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (c chain) Get(key string) (string, bool) {
	for _, p := range c {
		if v, ok := p.Get(key); ok {
			return v, true
		}
	}
	return "", false
}

// Lookup returns the value for key from p, falling back to the
// built-in default.
func Lookup(p Provider, key string) string {
	if p != nil {
		if v, ok := p.Get(key); ok {
			return v
		}
	}
	v, _ := Default(key)
	return v
}
