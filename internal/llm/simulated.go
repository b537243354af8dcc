package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/rs/zerolog/log"
)

// DefaultSimulatedDelay is how long SimulatedGenerator pretends to work.
const DefaultSimulatedDelay = 2 * time.Second

// SimulatedGenerator stands in for the pro image model. It waits, logs what it
// would have sent and returns the input image unchanged.
type SimulatedGenerator struct {
	Delay time.Duration
}

// NewSimulatedGenerator returns a generator with the given delay. A negative
// delay is treated as zero.
func NewSimulatedGenerator(delay time.Duration) *SimulatedGenerator {
	if delay < 0 {
		delay = 0
	}
	return &SimulatedGenerator{Delay: delay}
}

// Generate implements Generator.
func (s *SimulatedGenerator) Generate(ctx context.Context, image listing.Payload, prompt string, resolution listing.Resolution) (*ImageResult, error) {
	log.Info().
		Str("resolution", string(resolution)).
		Str("prompt", prompt).
		Msg("simulated generation")

	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrGenerateFailed, ctx.Err())
		case <-timer.C:
		}
	}

	if image.IsEmpty() {
		return nil, opError(ErrGenerateFailed, "no image to generate from")
	}

	return &ImageResult{Image: image.Clone()}, nil
}
