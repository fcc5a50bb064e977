package health

import (
	"context"

	"github.com/narravox/narravox/pkg/provider/tts"
)

// Pinger is the subset of a database pool needed for a readiness probe.
// *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Database returns a checker that pings the backing database.
func Database(p Pinger) Checker {
	return Checker{
		Name: "database",
		Check: func(ctx context.Context) error {
			return p.Ping(ctx)
		},
	}
}

// Synthesis returns a checker that probes the speech-synthesis provider by
// listing its models. A provider that cannot enumerate models cannot
// synthesize either.
func Synthesis(p tts.Provider) Checker {
	return Checker{
		Name: "synthesis",
		Check: func(ctx context.Context) error {
			_, err := p.ListModels(ctx)
			return err
		},
	}
}
