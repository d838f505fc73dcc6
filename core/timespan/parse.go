package timespan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// timecodeGrammar is the participle grammar for timecode strings.
// Examples: "90250", "250ms", "12.5s", "1:02", "1:02.500", "1:02:03.250"
//
//nolint:govet // participle grammar tags are not standard struct tags
type timecodeGrammar struct {
	First int        `@Int`
	Clock *clockPart `( ":" @@ )?`
	Frac  *string    `( "." @Int )?`
	Unit  *string    `@Unit?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type clockPart struct {
	Second int  `@Int`
	Third  *int `( ":" @Int )?`
}

// timecodeLexer defines the lexer for timecodes.
var timecodeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Unit", Pattern: `ms|s`},
	{Name: "Punct", Pattern: `[:.]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// timecodeParser is the participle parser for timecodes.
var timecodeParser = participle.MustBuild[timecodeGrammar](
	participle.Lexer(timecodeLexer),
	participle.Elide("Whitespace"),
)

// ParseTimecode parses a human timecode string into milliseconds.
// Supported formats:
//   - "90250" (bare milliseconds)
//   - "250ms" (explicit milliseconds)
//   - "12.5s" (seconds with optional fraction)
//   - "1:02" (minutes:seconds)
//   - "1:02.500" (minutes:seconds.milliseconds)
//   - "1:02:03.250" (hours:minutes:seconds.milliseconds)
func ParseTimecode(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timecode string")
	}

	parsed, err := timecodeParser.ParseString("", s)
	if err != nil {
		return 0, fmt.Errorf("invalid timecode format: %q: %w", s, err)
	}

	var fracMS int64
	if parsed.Frac != nil {
		fracMS, err = fracToMillis(*parsed.Frac)
		if err != nil {
			return 0, fmt.Errorf("invalid timecode %q: %w", s, err)
		}
	}

	switch {
	case parsed.Unit != nil && *parsed.Unit == "ms":
		if parsed.Clock != nil || parsed.Frac != nil {
			return 0, fmt.Errorf("invalid timecode %q: milliseconds take no clock or fraction", s)
		}
		return int64(parsed.First), nil

	case parsed.Unit != nil: // "s"
		if parsed.Clock != nil {
			return 0, fmt.Errorf("invalid timecode %q: seconds take no clock part", s)
		}
		return int64(parsed.First)*1000 + fracMS, nil

	case parsed.Clock != nil:
		ms, err := clockToMillis(parsed, fracMS)
		if err != nil {
			return 0, fmt.Errorf("invalid timecode %q: %w", s, err)
		}
		return ms, nil

	case parsed.Frac != nil:
		return 0, fmt.Errorf("invalid timecode %q: fractional value needs an s suffix or a clock form", s)

	default:
		return int64(parsed.First), nil
	}
}

// MustParseTimecode is ParseTimecode that panics on error. For tests and
// compiled-in defaults.
func MustParseTimecode(s string) int64 {
	ms, err := ParseTimecode(s)
	if err != nil {
		panic(err)
	}
	return ms
}

func clockToMillis(parsed *timecodeGrammar, fracMS int64) (int64, error) {
	var hours, minutes, seconds int
	if parsed.Clock.Third != nil {
		hours = parsed.First
		minutes = parsed.Clock.Second
		seconds = *parsed.Clock.Third
		if minutes > 59 {
			return 0, fmt.Errorf("minutes %d out of range", minutes)
		}
	} else {
		minutes = parsed.First
		seconds = parsed.Clock.Second
	}
	if seconds > 59 {
		return 0, fmt.Errorf("seconds %d out of range", seconds)
	}

	total := int64(hours)*3600 + int64(minutes)*60 + int64(seconds)
	return total*1000 + fracMS, nil
}

// fracToMillis scales a fractional-second token to milliseconds, preserving
// leading zeros ("05" means 50ms). More than three digits would need
// sub-millisecond precision, which the timeline does not carry.
func fracToMillis(tok string) (int64, error) {
	if len(tok) > 3 {
		return 0, fmt.Errorf("fraction %q is finer than milliseconds", tok)
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("fraction %q: %w", tok, err)
	}
	for i := len(tok); i < 3; i++ {
		n *= 10
	}
	return int64(n), nil
}

// FormatTimecode renders milliseconds as "h:mm:ss.mmm".
func FormatTimecode(ms int64) string {
	if ms < 0 {
		return "-" + FormatTimecode(-ms)
	}
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	frac := ms % 1000
	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, frac)
}
