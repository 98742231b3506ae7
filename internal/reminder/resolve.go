package reminder

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ResolverConfig controls wall-clock defaulting. All defaulting and
// comparisons happen in a single configured location; the resolver never
// mixes locations.
type ResolverConfig struct {
	Location *time.Location
	// DefaultHour is the time-of-day used when the expression names a date
	// but no clock time (default 10).
	DefaultHour int
	// HorizonDays is the fallback horizon when nothing parses at all
	// (default 2 days at DefaultHour).
	HorizonDays int
}

// Resolver turns free-form time expressions into an unambiguous future
// instant. It is a pure function of (text, reference instant); safe for
// concurrent use.
type Resolver struct {
	loc         *time.Location
	defaultHour int
	horizonDays int
	nl          *when.Parser
}

func NewResolver(cfg ResolverConfig) *Resolver {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	hour := cfg.DefaultHour
	if hour <= 0 || hour > 23 {
		hour = 10
	}
	horizon := cfg.HorizonDays
	if horizon <= 0 {
		horizon = 2
	}

	nl := when.New(nil)
	nl.Add(en.All...)
	nl.Add(common.All...)

	return &Resolver{loc: loc, defaultHour: hour, horizonDays: horizon, nl: nl}
}

// Location returns the resolver's configured location.
func (r *Resolver) Location() *time.Location { return r.loc }

var (
	shorthandRe = regexp.MustCompile(`^(\d+)([smhd])$`)
	// A token that ends in a unit letter and starts with a digit but is not
	// a clean shorthand is a malformed shorthand, not natural language.
	shorthandishRe = regexp.MustCompile(`^\d.*[smhd]$`)
)

var weekdays = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday,
}

// Resolve parses text against ref, in priority order: shorthand duration,
// weekday name, natural language, default horizon. The returned bool
// reports whether any time-of-day defaulting occurred. The result is
// always strictly after ref: a past resolution is bumped forward by
// exactly one calendar year.
func (r *Resolver) Resolve(text string, ref time.Time) (time.Time, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false, ErrEmptyInput
	}
	ref = ref.In(r.loc)

	at, defaulted, err := r.resolve(text, ref)
	if err != nil {
		return time.Time{}, false, err
	}

	// Past-instant correction: advance the year by exactly one. Never clamp
	// to now, never advance by day or month.
	if !at.After(ref) {
		at = at.AddDate(1, 0, 0)
	}
	return at, defaulted, nil
}

func (r *Resolver) resolve(text string, ref time.Time) (time.Time, bool, error) {
	if tok := strings.ToLower(text); !strings.ContainsAny(text, " \t\n") {
		// Single-token expressions: shorthand and weekday names.
		if m := shorthandRe.FindStringSubmatch(tok); m != nil {
			off, err := shorthandOffset(m)
			if err != nil {
				return time.Time{}, false, err
			}
			return ref.Add(off), false, nil
		}
		if shorthandishRe.MatchString(tok) {
			return time.Time{}, false, ErrMalformedShorthand
		}
		if wd, ok := weekdays[tok]; ok {
			return r.nextWeekday(ref, wd), true, nil
		}
	}

	// Natural language: extract any recognizable date/time tokens, ignoring
	// surrounding words.
	if res, err := r.nl.Parse(text, ref); err == nil && res != nil {
		at := res.Time.In(r.loc)
		if at.Hour() == 0 && at.Minute() == 0 && at.Second() == 0 {
			// Date-only phrase: default the clock time.
			return time.Date(at.Year(), at.Month(), at.Day(), r.defaultHour, 0, 0, 0, r.loc), true, nil
		}
		return at, false, nil
	}

	// Default horizon: nothing parsed at all.
	d := ref.AddDate(0, 0, r.horizonDays)
	return time.Date(d.Year(), d.Month(), d.Day(), r.defaultHour, 0, 0, 0, r.loc), true, nil
}

// ExtractSchedule splits a command tail like "friday pay the rent" or
// "in 2 hours stand up" into the fire instant and the reminder body. The
// time expression is recognized with the same priority order as Resolve;
// the body is whatever text the time expression did not consume. With the
// default-horizon fallback the whole text becomes the body.
func (r *Resolver) ExtractSchedule(text string, ref time.Time) (time.Time, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, "", ErrEmptyInput
	}
	ref = ref.In(r.loc)

	bump := func(at time.Time) time.Time {
		if !at.After(ref) {
			at = at.AddDate(1, 0, 0)
		}
		return at
	}

	first, rest, _ := strings.Cut(text, " ")
	tok := strings.ToLower(first)
	rest = strings.TrimSpace(rest)
	if m := shorthandRe.FindStringSubmatch(tok); m != nil {
		off, err := shorthandOffset(m)
		if err != nil {
			return time.Time{}, "", err
		}
		return bump(ref.Add(off)), rest, nil
	}
	if shorthandishRe.MatchString(tok) {
		return time.Time{}, "", ErrMalformedShorthand
	}
	if wd, ok := weekdays[tok]; ok {
		return bump(r.nextWeekday(ref, wd)), rest, nil
	}

	if res, err := r.nl.Parse(text, ref); err == nil && res != nil {
		at := res.Time.In(r.loc)
		if at.Hour() == 0 && at.Minute() == 0 && at.Second() == 0 {
			at = time.Date(at.Year(), at.Month(), at.Day(), r.defaultHour, 0, 0, 0, r.loc)
		}
		body := strings.TrimSpace(text[:res.Index] + text[res.Index+len(res.Text):])
		return bump(at), body, nil
	}

	d := ref.AddDate(0, 0, r.horizonDays)
	at := time.Date(d.Year(), d.Month(), d.Day(), r.defaultHour, 0, 0, 0, r.loc)
	return bump(at), text, nil
}

// nextWeekday returns the next occurrence of wd strictly after ref's date
// (a full week ahead when ref is already on wd), at the default hour.
func (r *Resolver) nextWeekday(ref time.Time, wd time.Weekday) time.Time {
	ahead := int(wd-ref.Weekday()+7) % 7
	if ahead == 0 {
		ahead = 7
	}
	d := ref.AddDate(0, 0, ahead)
	return time.Date(d.Year(), d.Month(), d.Day(), r.defaultHour, 0, 0, 0, r.loc)
}

// shorthandOffset converts a matched shorthand into a duration offset.
// Magnitudes whose product would overflow a Duration (and so wrap into the
// past) are rejected as malformed.
func shorthandOffset(m []string) (time.Duration, error) {
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, ErrMalformedShorthand
	}
	unit := unitOf(m[2])
	if n > math.MaxInt64/int64(unit) {
		return 0, ErrMalformedShorthand
	}
	return time.Duration(n) * unit, nil
}

func unitOf(s string) time.Duration {
	switch s {
	case "s":
		return time.Second
	case "m":
		return time.Minute
	case "h":
		return time.Hour
	case "d":
		return 24 * time.Hour
	}
	return 0
}
