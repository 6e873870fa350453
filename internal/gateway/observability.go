package gateway

import "github.com/rs/zerolog"

// CallEvent records metadata about a single backend call.
type CallEvent struct {
	Method    string
	Path      string
	RequestID string
	Status    int
	LatencyMs int64
	Success   bool
	ErrorKind string
}

// Observer receives events about backend calls for logging and metrics.
type Observer interface {
	OnCallComplete(event CallEvent)
}

// LogObserver writes call events to a zerolog logger.
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver creates an Observer that logs events through logger.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger.With().Str("component", "gateway").Logger()}
}

func (o *LogObserver) OnCallComplete(event CallEvent) {
	ev := o.logger.Info()
	if !event.Success {
		ev = o.logger.Warn().Str("error_kind", event.ErrorKind)
	}
	ev.Str("method", event.Method).
		Str("path", event.Path).
		Str("request_id", event.RequestID).
		Int("status", event.Status).
		Int64("latency_ms", event.LatencyMs).
		Msg("api_call")
}

// NoopObserver discards all events. Useful for tests.
type NoopObserver struct{}

func (NoopObserver) OnCallComplete(CallEvent) {}
