package types

import (
	"time"

	"folio/internal/calendar"

	"github.com/shopspring/decimal"
)

// Snapshot is the end-of-day value of a portfolio and the external cash that
// crossed its boundary that day.
type Snapshot struct {
	UserID      int64               `json:"user_id"`
	Date        calendar.Date       `json:"date"`
	Value       decimal.Decimal     `json:"value_eur"`
	NetFlow     decimal.Decimal     `json:"net_flow_eur"`
	DailyReturn decimal.NullDecimal `json:"daily_return"`
	RecordedAt  time.Time           `json:"recorded_at"`
}

// SnapshotStatus reports how far a snapshot run got for a date.
type SnapshotStatus struct {
	Date        calendar.Date `json:"date"`
	ActiveUsers int           `json:"active_users"`
	Snapshotted int           `json:"snapshotted"`
	Complete    bool          `json:"complete"`
}

// SnapshotRun summarizes one pass over all active users.
type SnapshotRun struct {
	Date     calendar.Date    `json:"date"`
	Recorded int              `json:"recorded"`
	Failed   map[int64]string `json:"failed,omitempty"`
	Duration time.Duration    `json:"duration_ns"`
}
