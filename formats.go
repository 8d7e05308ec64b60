package gamearchive

import (
	"fmt"
	"sort"

	"github.com/retrodos/gamearchive/stream"
)

// Registered formats and filters, keyed by code.
var (
	formats = make(map[string]Format)
	filters = make(map[string]Filter)
)

// RegisterFormat registers an archive format. It should be called
// during init. Duplicate formats by code are not allowed and will
// panic.
func RegisterFormat(f Format) {
	code := f.Code()
	if _, ok := formats[code]; ok {
		panic("format " + code + " is already registered")
	}
	formats[code] = f
}

// RegisterFilter registers a filter. It should be called during
// init. Duplicate filters by code are not allowed and will panic.
func RegisterFilter(f Filter) {
	code := f.Code()
	if _, ok := filters[code]; ok {
		panic("filter " + code + " is already registered")
	}
	filters[code] = f
}

// Formats returns all registered archive formats, sorted by code.
func Formats() []Format {
	out := make([]Format, 0, len(formats))
	for _, f := range formats {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code() < out[j].Code() })
	return out
}

// Filters returns all registered filters, sorted by code.
func Filters() []Filter {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code() < out[j].Code() })
	return out
}

// FormatByCode returns the format registered under code, or nil.
func FormatByCode(code string) Format { return formats[code] }

// FilterByCode returns the filter registered under code, or nil.
func FilterByCode(code string) Filter { return filters[code] }

// Identify probes every registered format against the stream and
// returns the best match: a DefinitelyYes wins outright, otherwise
// the strongest PossiblyYes/Unsure answer. ErrNoMatch is returned
// when every format says DefinitelyNo.
func Identify(s stream.ReadStream) (Format, Certainty, error) {
	var best Format
	bestCertainty := DefinitelyNo
	for _, f := range Formats() {
		c, err := f.Match(s)
		if err != nil {
			return nil, DefinitelyNo, fmt.Errorf("matching %s: %w", f.Code(), err)
		}
		if c == DefinitelyYes {
			return f, c, nil
		}
		if c > bestCertainty {
			best, bestCertainty = f, c
		}
	}
	if best == nil {
		return nil, DefinitelyNo, ErrNoMatch
	}
	return best, bestCertainty, nil
}

// applyFilterCode wraps target with the named filter's codec pair.
func applyFilterCode(code string, target stream.Stream, resize stream.NotifyPrefiltered) (stream.Stream, error) {
	ft := FilterByCode(code)
	if ft == nil {
		return nil, fmt.Errorf("%w: unknown filter %q", ErrInvalidFormat, code)
	}
	return ft.Apply(target, resize)
}
