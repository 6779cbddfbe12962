// Package config resolves queuectl settings from layered key/value
// providers.
//
// A Provider answers Get(key). Providers compose with Chain, the first
// provider holding a key wins:
//
//	f, err := config.OpenFile(config.DefaultPath())
//	p := config.Chain(config.Env(), f)
//	cfg, err := config.Resolve(p)
//
// File persists settings as YAML. Set validates a value before storing
// it and Save writes the file atomically.
package config
