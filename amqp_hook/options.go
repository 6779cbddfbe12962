package amqphook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// PayloadFunc builds a custom message body for a specific event type. It
// receives the default payload and returns the value to be JSON-encoded.
type PayloadFunc func(defaultPayload any) (any, error)

// WithEvents restricts the extension to publish only the listed event
// types. By default all event types are enabled. Unknown types are
// silently ignored.
func WithEvents(events ...string) Option {
	return func(h *Extension) {
		h.enabled = make(map[string]bool, len(events))
		for _, e := range events {
			h.enabled[e] = true
		}
	}
}

// WithPayloadFunc registers a custom payload builder for the given event
// type.
func WithPayloadFunc(eventType string, fn PayloadFunc) Option {
	return func(h *Extension) {
		if h.payloads == nil {
			h.payloads = make(map[string]PayloadFunc)
		}
		h.payloads[eventType] = fn
	}
}

// WithAppID sets the AppId property on published messages.
func WithAppID(appID string) Option {
	return func(h *Extension) { h.appID = appID }
}

// WithLogger sets the logger used to report publish failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Extension) { h.logger = l }
}
