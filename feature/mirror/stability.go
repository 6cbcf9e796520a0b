package mirror

import (
	"context"
	"os"
	"time"
)

// StabilityProbe decides when a file has finished being written by polling
// its size until it stays constant for the required duration. A "created"
// notification fires the moment a file is opened for writing; copying at
// that instant would mirror a truncated artifact.
type StabilityProbe struct {
	// PollInterval is how often the size is sampled.
	PollInterval time.Duration
	// StableTime is the accumulated unchanged duration required.
	StableTime time.Duration

	// sizeFn is overridable for tests; defaults to os.Stat.
	sizeFn func(path string) (int64, error)
}

// NewStabilityProbe creates a probe with the given timings.
func NewStabilityProbe(pollInterval, stableTime time.Duration) *StabilityProbe {
	return &StabilityProbe{
		PollInterval: pollInterval,
		StableTime:   stableTime,
		sizeFn:       statSize,
	}
}

func statSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// AwaitStable polls path until its size is unchanged for StableTime and
// returns true. It returns false as soon as the file no longer exists (the
// caller must abandon the mirror) or ctx is canceled.
func (p *StabilityProbe) AwaitStable(ctx context.Context, path string) bool {
	var (
		previousSize int64 = -1
		stableFor    time.Duration
	)

	for {
		size, err := p.sizeFn(path)
		if err != nil {
			return false
		}

		if size == previousSize {
			stableFor += p.PollInterval
			if stableFor >= p.StableTime {
				return true
			}
		} else {
			stableFor = 0
			previousSize = size
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(p.PollInterval):
		}
	}
}
