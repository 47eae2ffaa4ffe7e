package service

import (
	"context"

	"github.com/rs/zerolog"
)

type compensation struct {
	name string
	run  func(ctx context.Context) error
}

// compensationStack records undo actions for externally committed steps.
// Each forward transition pushes one; on failure the stack unwinds in
// reverse. Compensations are best-effort: a failed compensation is logged
// as a secondary diagnostic and never masks the original error.
type compensationStack struct {
	steps []compensation
}

func (s *compensationStack) push(name string, run func(ctx context.Context) error) {
	s.steps = append(s.steps, compensation{name: name, run: run})
}

func (s *compensationStack) unwind(ctx context.Context, log zerolog.Logger, failedStage string) {
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.run(ctx); err != nil {
			log.Error().
				Err(err).
				Str("compensation", step.name).
				Str("failed_stage", failedStage).
				Msg("compensation failed")
			continue
		}
		log.Info().
			Str("compensation", step.name).
			Str("failed_stage", failedStage).
			Msg("compensation applied")
	}
	s.steps = nil
}
