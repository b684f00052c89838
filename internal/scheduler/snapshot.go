package scheduler

import (
	"context"
	"fmt"
	"time"

	"folio/internal/calendar"
	"folio/types"
)

// SnapshotJob records the closing value of every active portfolio for the
// current Berlin date.
type SnapshotJob struct {
	run     func(ctx context.Context, date calendar.Date) (types.SnapshotRun, error)
	today   func() calendar.Date
	timeout time.Duration
}

func NewSnapshotJob(today func() calendar.Date, run func(ctx context.Context, date calendar.Date) (types.SnapshotRun, error), timeout time.Duration) *SnapshotJob {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &SnapshotJob{run: run, today: today, timeout: timeout}
}

func (j *SnapshotJob) Name() string { return "daily_snapshot" }

// Run fails only when the run itself could not start or when every user failed.
func (j *SnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	date := j.today()
	res, err := j.run(ctx, date)
	if err != nil {
		return err
	}
	if res.Recorded == 0 && len(res.Failed) > 0 {
		return fmt.Errorf("snapshot %s: all %d users failed", date, len(res.Failed))
	}
	return nil
}
