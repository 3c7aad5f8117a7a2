// internal/app/sweeper/jobs.go
package sweeper

import (
	"context"
	"time"

	"github.com/dalemusser/groupdeal/internal/app/system/tasks"
)

// DefaultInterval is how often the sweep cycle runs when no override is
// configured.
const DefaultInterval = 60 * time.Second

// Job wraps the sweeper in a scheduled task. Per-group failures are
// already isolated inside RunOnce; only a wholesale scan failure
// surfaces to the runner's log.
func Job(s *Sweeper, interval time.Duration) tasks.Job {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return tasks.Job{
		Name:     "group-expiry-sweep",
		Interval: interval,
		Timeout:  interval,
		Run: func(ctx context.Context) error {
			res := s.RunOnce(ctx)
			if len(res.Errors) > 0 {
				return res.Errors[0]
			}
			return nil
		},
	}
}
