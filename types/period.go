package types

import "strings"

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

var ConvertPeriod = map[string]Period{
	"day":   PeriodDay,
	"d":     PeriodDay,
	"week":  PeriodWeek,
	"w":     PeriodWeek,
	"month": PeriodMonth,
	"m":     PeriodMonth,
	"year":  PeriodYear,
	"y":     PeriodYear,
	"ytd":   PeriodYear,
}

func ParsePeriod(s string) (Period, bool) {
	p, ok := ConvertPeriod[strings.ToLower(strings.TrimSpace(s))]
	return p, ok
}
