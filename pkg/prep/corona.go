// Package prep holds data preparation steps applied before fitting: date
// range splits, labelled corona-period flags and rolling-median outlier
// masking.
package prep

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/HatiCode/loadcast/pkg/models"
)

// Corona period flag columns.
const (
	PreCorona    = "pre_corona"
	DuringCorona = "during_corona"
	PostCorona   = "post_corona"
	NoCorona     = "no_corona"
)

// CoronaStrategy selects how timestamps are divided around the lockdown period.
type CoronaStrategy string

const (
	// StrategyDuringNo flags during_corona and no_corona.
	StrategyDuringNo CoronaStrategy = "dn"
	// StrategyPreDuringPost flags pre_corona, during_corona and post_corona.
	StrategyPreDuringPost CoronaStrategy = "pdp"
)

var strategyColumns = map[CoronaStrategy][]string{
	StrategyDuringNo:      {DuringCorona, NoCorona},
	StrategyPreDuringPost: {PreCorona, DuringCorona, PostCorona},
}

// ParseCoronaStrategy maps a set of flag names (order ignored) to a strategy.
func ParseCoronaStrategy(flags []string) (CoronaStrategy, error) {
	got := append([]string(nil), flags...)
	slices.Sort(got)
	got = slices.Compact(got)

	for _, s := range []CoronaStrategy{StrategyDuringNo, StrategyPreDuringPost} {
		want := append([]string(nil), strategyColumns[s]...)
		slices.Sort(want)
		if slices.Equal(got, want) {
			return s, nil
		}
	}

	accepted := make([]string, 0, len(strategyColumns))
	for _, s := range []CoronaStrategy{StrategyDuringNo, StrategyPreDuringPost} {
		accepted = append(accepted, "['"+strings.Join(strategyColumns[s], "', '")+"']")
	}
	return "", fmt.Errorf("unsupported corona strategy %v, expected one of: %s", flags, strings.Join(accepted, ", "))
}

// Columns returns the flag columns the strategy adds.
func (s CoronaStrategy) Columns() []string {
	return append([]string(nil), strategyColumns[s]...)
}

// Period is an inclusive date range.
type Period struct {
	Start time.Time
	End   time.Time
}

func lockdown(startDay int) Period {
	return Period{
		Start: time.Date(2020, time.March, startDay, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2020, time.April, 12, 23, 0, 0, 0, time.UTC),
	}
}

// DefaultCoronaPeriods returns the first-lockdown period per country code.
func DefaultCoronaPeriods() map[string]Period {
	return map[string]Period{
		"BE": lockdown(7),
		"CH": lockdown(7),
		"CZ": lockdown(14),
		"DE": lockdown(14),
		"ES": lockdown(14),
		"FR": lockdown(7),
		"HR": lockdown(21),
		"IT": lockdown(14),
		"NL": lockdown(14),
		"PL": lockdown(14),
	}
}

func flag(b bool) models.Value {
	if b {
		return models.Float(1)
	}
	return models.Float(0)
}

// AddCoronaFlags returns a copy of data with 0/1 flag columns for strategy.
// Row series identifiers are country codes looked up in periods; rows of a
// country without a period get every flag set to 0.
func AddCoronaFlags(data models.Frame, strategy CoronaStrategy, periods map[string]Period) (models.Frame, error) {
	if _, ok := strategyColumns[strategy]; !ok {
		return models.Frame{}, fmt.Errorf("unsupported corona strategy %q", strategy)
	}

	out := data.Clone()
	for i := range out.Rows {
		r := &out.Rows[i]
		p, known := periods[r.Series]

		before := known && r.Time.Before(p.Start)
		after := known && r.Time.After(p.End)
		during := known && !before && !after

		switch strategy {
		case StrategyDuringNo:
			r.Values[NoCorona] = flag(before || after)
		case StrategyPreDuringPost:
			r.Values[PreCorona] = flag(before)
			r.Values[PostCorona] = flag(after)
		}
		r.Values[DuringCorona] = flag(during)
	}
	return out, nil
}
