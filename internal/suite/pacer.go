package suite

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Pacer holds the fixed pauses a run takes to stay gentle on the service.
// The delays are not adaptive and play no part in correctness.
type Pacer struct {
	FollowUp          time.Duration
	BetweenCharacters time.Duration
}

// WaitFollowUp pauses before the second turn of a memory check.
func (p Pacer) WaitFollowUp(ctx context.Context) error {
	return pause(ctx, p.FollowUp)
}

// WaitBetweenCharacters pauses after one character's checks.
func (p Pacer) WaitBetweenCharacters(ctx context.Context) error {
	return pause(ctx, p.BetweenCharacters)
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	log.Debug().Dur("sleep", d).Msg("Pacing before next request")
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
