package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// UseCaseEvent describes one finished call into the results service.
type UseCaseEvent struct {
	Name      string
	StartedAt time.Time
	Duration  time.Duration
	Success   bool
	Err       error
	Fields    map[string]any
}

type UseCaseObserver interface {
	ObserveUseCase(ctx context.Context, event UseCaseEvent)
}

type NoopUseCaseObserver struct{}

func (NoopUseCaseObserver) ObserveUseCase(context.Context, UseCaseEvent) {}

// NewLogUseCaseObserver writes one line per use case: info on success,
// error otherwise.
func NewLogUseCaseObserver(logger zerolog.Logger) UseCaseObserver {
	return &logUseCaseObserver{logger: logger.With().Str("component", "results").Logger()}
}

type logUseCaseObserver struct {
	logger zerolog.Logger
}

func (o *logUseCaseObserver) ObserveUseCase(_ context.Context, ev UseCaseEvent) {
	level := zerolog.InfoLevel
	if ev.Err != nil {
		level = zerolog.ErrorLevel
	}
	o.logger.WithLevel(level).
		Err(ev.Err).
		Str("use_case", ev.Name).
		Dur("took", ev.Duration).
		Bool("success", ev.Success).
		Fields(ev.Fields).
		Msg("use case finished")
}

// track starts timing a use case. The returned func reports it with the
// final error; fields may be filled in until then.
func track(ctx context.Context, obs UseCaseObserver, name string, fields map[string]any) func(err error) {
	startedAt := time.Now().UTC()
	return func(err error) {
		obs.ObserveUseCase(ctx, UseCaseEvent{
			Name:      name,
			StartedAt: startedAt,
			Duration:  time.Since(startedAt),
			Success:   err == nil,
			Err:       err,
			Fields:    fields,
		})
	}
}

// firstObserver picks the first non-nil observer, falling back to a no-op.
func firstObserver(observers []UseCaseObserver) UseCaseObserver {
	for _, obs := range observers {
		if obs != nil {
			return obs
		}
	}
	return NoopUseCaseObserver{}
}
