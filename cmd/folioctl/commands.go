package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"folio/internal/calendar"
	"folio/internal/engine"
	"folio/types"

	"github.com/google/subcommands"
)

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return subcommands.ExitFailure
}

// dateOrToday parses s, defaulting to the Berlin date of now.
func dateOrToday(e *engine.Engine, s string) (calendar.Date, error) {
	if s == "" {
		return e.Today(), nil
	}
	return calendar.Parse(s)
}

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply the schema of the configured store" }
func (*migrateCmd) Usage() string {
	return `folioctl migrate

  Connects to the store named by FOLIO_STORE and applies its schema.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()
	fmt.Printf("schema of the %s store is up to date\n", a.cfg.Store)
	return subcommands.ExitSuccess
}

type snapshotCmd struct {
	date string
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "record the daily snapshot of every active user" }
func (*snapshotCmd) Usage() string {
	return `folioctl snapshot [-d <date>]

  Values every active portfolio and records it as the close of <date> (today by default).
`
}

func (p *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.date, "d", "", "Snapshot date (YYYY-MM-DD). Defaults to today in Europe/Berlin.")
}

func (p *snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	date, err := dateOrToday(a.engine, p.date)
	if err != nil {
		return fail(err)
	}
	users, err := a.store.ActiveUsers(ctx)
	if err != nil {
		return fail(err)
	}
	bar := initProgressBar(len(users))
	run, err := a.engine.RunSnapshots(ctx, date, bar)
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("%s: %d recorded, %d failed in %s\n", run.Date, run.Recorded, len(run.Failed), run.Duration.Round(1e6))
	ids := make([]int64, 0, len(run.Failed))
	for id := range run.Failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Printf("  user %d: %s\n", id, run.Failed[id])
	}
	if len(run.Failed) > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type statusCmd struct {
	date string
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show how many users have a snapshot for a date" }
func (*statusCmd) Usage() string {
	return `folioctl status [-d <date>]
`
}

func (p *statusCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.date, "d", "", "Date to check (YYYY-MM-DD). Defaults to today.")
}

func (p *statusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	date, err := dateOrToday(a.engine, p.date)
	if err != nil {
		return fail(err)
	}
	st, err := a.engine.SnapshotStatus(ctx, date)
	if err != nil {
		return fail(err)
	}
	state := "incomplete"
	if st.Complete {
		state = "complete"
	}
	printMarkdown(fmt.Sprintf("# Snapshots %s\n\n| Active users | Snapshotted | State |\n|---:|---:|---|\n| %d | %d | %s |\n",
		st.Date, st.ActiveUsers, st.Snapshotted, state))
	return subcommands.ExitSuccess
}

type portfolioCmd struct {
	user int64
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "show the holdings of a user" }
func (*portfolioCmd) Usage() string {
	return `folioctl portfolio -u <user>
`
}

func (p *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&p.user, "u", 0, "User id.")
}

func (p *portfolioCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.user <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -u is required")
		return subcommands.ExitUsageError
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	view, err := a.engine.Portfolio(ctx, p.user)
	if err != nil {
		return fail(err)
	}
	var buf bytes.Buffer
	if err := engine.WritePortfolioReport(&buf, view); err != nil {
		return fail(err)
	}
	printMarkdown(buf.String())
	return subcommands.ExitSuccess
}

type analyticsCmd struct {
	user   int64
	period string
}

func (*analyticsCmd) Name() string     { return "analytics" }
func (*analyticsCmd) Synopsis() string { return "show time-weighted returns of a user" }
func (*analyticsCmd) Usage() string {
	return `folioctl analytics -u <user> [-p day|week|month|year]
`
}

func (p *analyticsCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&p.user, "u", 0, "User id.")
	f.StringVar(&p.period, "p", "week", "Period (day, week, month, year).")
}

func (p *analyticsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	period, ok := types.ParsePeriod(p.period)
	if p.user <= 0 || !ok {
		fmt.Fprintln(os.Stderr, "Error: -u is required and -p must be day, week, month or year")
		return subcommands.ExitUsageError
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	res, err := a.engine.Analytics(ctx, p.user, period)
	if err != nil {
		return fail(err)
	}
	var buf bytes.Buffer
	if err := engine.WriteAnalyticsReport(&buf, res); err != nil {
		return fail(err)
	}
	printMarkdown(buf.String())
	return subcommands.ExitSuccess
}

type txCmd struct {
	user  int64
	limit int
	csv   string
}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "list the latest transactions of a user" }
func (*txCmd) Usage() string {
	return `folioctl tx -u <user> [-n <limit>] [-csv <dir>]

  Lists the newest transactions first. With -csv they are written to <dir>/transactions-<user>.csv instead.
`
}

func (p *txCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&p.user, "u", 0, "User id.")
	f.IntVar(&p.limit, "n", 10, "Number of transactions (1..50).")
	f.StringVar(&p.csv, "csv", "", "Directory to export a CSV file into.")
}

func (p *txCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.user <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -u is required")
		return subcommands.ExitUsageError
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	if p.csv != "" {
		cfg := engine.NewReportingConfig(fmt.Sprintf("transactions-%d", p.user), p.csv)
		path, err := a.engine.WriteTransactionsCSVFile(ctx, cfg, p.user, p.limit)
		if err != nil {
			return fail(err)
		}
		fmt.Println("written", path)
		return subcommands.ExitSuccess
	}

	txs, err := a.engine.Transactions(ctx, p.user, p.limit)
	if err != nil {
		return fail(err)
	}
	var buf bytes.Buffer
	if err := engine.WriteTransactionsReport(&buf, txs); err != nil {
		return fail(err)
	}
	printMarkdown(buf.String())
	return subcommands.ExitSuccess
}
