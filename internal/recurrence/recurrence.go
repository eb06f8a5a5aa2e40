// Package recurrence implements the validated RFC-5545 subset described in
// spec.md §4.1, backed by github.com/teambition/rrule-go for the underlying
// iteration and DST-transition semantics.
package recurrence

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"nittei/pkg/apperr"
)

// Frequency is the recurrence cadence.
type Frequency string

const (
	Secondly Frequency = "SECONDLY"
	Minutely Frequency = "MINUTELY"
	Hourly   Frequency = "HOURLY"
	Daily    Frequency = "DAILY"
	Weekly   Frequency = "WEEKLY"
	Monthly  Frequency = "MONTHLY"
	Yearly   Frequency = "YEARLY"
)

var freqToRRule = map[Frequency]rrule.Frequency{
	Secondly: rrule.SECONDLY,
	Minutely: rrule.MINUTELY,
	Hourly:   rrule.HOURLY,
	Daily:    rrule.DAILY,
	Weekly:   rrule.WEEKLY,
	Monthly:  rrule.MONTHLY,
	Yearly:   rrule.YEARLY,
}

// Weekday is Monday=0 .. Sunday=6, matching RFC-5545 WKST ordering.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayToken = [...]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

var weekdayToRRule = [...]rrule.Weekday{
	rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU,
}

// WeekdayOccurrence is a BYDAY entry: a weekday, optionally qualified by a
// signed ordinal ("3rd Friday" = {Friday, 3}, "last Sunday" = {Sunday, -1}).
// Occurrence is only meaningful for Monthly/Yearly frequencies.
type WeekdayOccurrence struct {
	Day        Weekday `json:"day"`
	Occurrence int     `json:"occurrence,omitempty"` // 0 means unqualified
}

// Options is the validated subset of RFC-5545 recurrence options spec.md
// §4.1 recognizes.
type Options struct {
	Freq       Frequency           `json:"freq"`
	Interval   int                 `json:"interval"` // default 1
	Count      *int                `json:"count,omitempty"`
	Until      *time.Time          `json:"until,omitempty"` // UTC
	ByWeekday  []WeekdayOccurrence `json:"by_weekday,omitempty"`
	ByMonthDay []int               `json:"by_month_day,omitempty"`
	ByMonth    []int               `json:"by_month,omitempty"`
	ByHour     []int               `json:"by_hour,omitempty"`
	ByMinute   []int               `json:"by_minute,omitempty"`
	BySecond   []int               `json:"by_second,omitempty"`
	WeekStart  Weekday             `json:"week_start"`
}

func inRange(v, lo, hi int) bool { return v >= lo && v <= hi }

// Validate rejects the shapes spec.md §4.1 and §8 disallow.
func (o Options) Validate() error {
	if _, ok := freqToRRule[o.Freq]; !ok {
		return apperr.BadInput("recurrence: freq is required and must be a recognized frequency")
	}
	if o.Interval < 0 {
		return apperr.BadInput("recurrence: interval must be positive")
	}
	if o.Interval == 0 {
		// caller should have defaulted to 1; treat as invalid rather than silently fixing.
		return apperr.BadInput("recurrence: interval must be positive")
	}
	if o.Count != nil && o.Until != nil {
		return apperr.BadInput("recurrence: count and until are mutually exclusive")
	}
	if o.Count != nil && *o.Count <= 0 {
		return apperr.BadInput("recurrence: count must be positive")
	}
	for _, wd := range o.ByWeekday {
		if wd.Occurrence != 0 && o.Freq != Monthly && o.Freq != Yearly {
			return apperr.BadInput("recurrence: by_weekday occurrence is only valid for monthly/yearly frequencies")
		}
		if !inRange(int(wd.Day), 0, 6) {
			return apperr.BadInput("recurrence: invalid weekday")
		}
	}
	for _, d := range o.ByMonthDay {
		if !inRange(d, -31, 31) || d == 0 {
			return apperr.BadInput("recurrence: by_month_day out of range")
		}
	}
	for _, m := range o.ByMonth {
		if !inRange(m, 1, 12) {
			return apperr.BadInput("recurrence: by_month out of range")
		}
	}
	for _, h := range o.ByHour {
		if !inRange(h, 0, 23) {
			return apperr.BadInput("recurrence: by_hour out of range")
		}
	}
	for _, m := range o.ByMinute {
		if !inRange(m, 0, 59) {
			return apperr.BadInput("recurrence: by_minute out of range")
		}
	}
	for _, s := range o.BySecond {
		if !inRange(s, 0, 60) {
			return apperr.BadInput("recurrence: by_second out of range")
		}
	}
	return nil
}

// ToCanonicalString emits "FREQ=…;INTERVAL=…;…" with stable field ordering
// and upper-case tokens, per spec.md §4.1.
func (o Options) ToCanonicalString() string {
	var b strings.Builder
	write := func(k, v string) {
		if b.Len() > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}

	write("FREQ", string(o.Freq))
	interval := o.Interval
	if interval == 0 {
		interval = 1
	}
	write("INTERVAL", strconv.Itoa(interval))
	if o.Count != nil {
		write("COUNT", strconv.Itoa(*o.Count))
	}
	if o.Until != nil {
		write("UNTIL", o.Until.UTC().Format("20060102T150405Z"))
	}
	if len(o.BySecond) > 0 {
		write("BYSECOND", joinInts(o.BySecond))
	}
	if len(o.ByMinute) > 0 {
		write("BYMINUTE", joinInts(o.ByMinute))
	}
	if len(o.ByHour) > 0 {
		write("BYHOUR", joinInts(o.ByHour))
	}
	if len(o.ByWeekday) > 0 {
		parts := make([]string, len(o.ByWeekday))
		for i, wd := range o.ByWeekday {
			tok := weekdayToken[wd.Day]
			if wd.Occurrence != 0 {
				tok = strconv.Itoa(wd.Occurrence) + tok
			}
			parts[i] = tok
		}
		write("BYDAY", strings.Join(parts, ","))
	}
	if len(o.ByMonthDay) > 0 {
		write("BYMONTHDAY", joinInts(o.ByMonthDay))
	}
	if len(o.ByMonth) > 0 {
		write("BYMONTH", joinInts(o.ByMonth))
	}
	write("WKST", weekdayToken[o.WeekStart])
	return b.String()
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// toROption builds the rrule-go options for this rule anchored at dtstart.
// dtstart must already be expressed in the wall-clock zone the caller wants
// DST transitions resolved against (see package expand's timezone policy).
func (o Options) toROption(dtstart time.Time) rrule.ROption {
	opt := rrule.ROption{
		Freq:     freqToRRule[o.Freq],
		Dtstart:  dtstart,
		Interval: o.Interval,
		Wkst:     weekdayToRRule[o.WeekStart],
	}
	if opt.Interval == 0 {
		opt.Interval = 1
	}
	if o.Count != nil {
		opt.Count = *o.Count
	}
	if o.Until != nil {
		opt.Until = o.Until.UTC()
	}
	if len(o.ByWeekday) > 0 {
		wds := make([]rrule.Weekday, len(o.ByWeekday))
		for i, wd := range o.ByWeekday {
			base := weekdayToRRule[wd.Day]
			if wd.Occurrence != 0 {
				base = base.Nth(wd.Occurrence)
			}
			wds[i] = base
		}
		opt.Byweekday = wds
	}
	opt.Bymonthday = o.ByMonthDay
	opt.Bymonth = o.ByMonth
	opt.Byhour = o.ByHour
	opt.Byminute = o.ByMinute
	opt.Bysecond = o.BySecond
	return opt
}

// Rule is a validated, anchored recurrence rule ready for iteration.
type Rule struct {
	opts    Options
	dtstart time.Time
	inner   *rrule.RRule
}

// New validates opts and anchors the rule at dtstart (the parent event's
// unexpanded start, in the zone DST transitions should resolve against).
func New(opts Options, dtstart time.Time) (*Rule, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Interval == 0 {
		opts.Interval = 1
	}
	inner, err := rrule.NewRRule(opts.toROption(dtstart))
	if err != nil {
		return nil, apperr.BadInput("recurrence: " + err.Error())
	}
	return &Rule{opts: opts, dtstart: dtstart, inner: inner}, nil
}

// Options returns the validated options this rule was built from.
func (r *Rule) Options() Options { return r.opts }

// Iter produces the finite, ascending sequence of start-instants from
// dtstart up to and including bound (inclusive), per spec.md §4.1. The
// sequence is finite because the rule carries a Count/Until, or the caller
// always supplies an explicit bound.
func (r *Rule) Iter(bound time.Time) []time.Time {
	times := r.inner.Between(r.dtstart, bound, true)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times
}
