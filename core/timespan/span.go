// Package timespan provides the half-open millisecond intervals that
// annotations occupy on a document timeline, plus parsing and formatting
// of human-readable timecodes.
package timespan

import "fmt"

// MinDurationMS is the minimum duration of a valid span, in milliseconds.
// Anything shorter is too small to select and edit on a timeline.
const MinDurationMS = 50

// Span is a half-open interval [Start, End) in integer milliseconds from
// the start of the document timeline.
type Span struct {
	// Start is the inclusive start time in milliseconds.
	Start int64 `json:"start_time"`

	// End is the exclusive end time in milliseconds.
	End int64 `json:"end_time"`
}

// New returns the span [start, end).
func New(start, end int64) Span {
	return Span{Start: start, End: end}
}

// Duration returns the length of the span in milliseconds.
func (s Span) Duration() int64 {
	return s.End - s.Start
}

// Contains reports whether other nests entirely within s. Boundaries may
// coincide: a span contains itself.
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// ContainsPoint reports whether the instant ms falls inside the span.
// The end boundary is exclusive.
func (s Span) ContainsPoint(ms int64) bool {
	return s.Start <= ms && ms < s.End
}

// Overlaps reports whether s and other share at least one instant.
// Spans that merely touch at a boundary do not overlap.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Validate checks structural validity: the start must be non-negative and
// strictly before the end, and the duration must be at least MinDurationMS.
func (s Span) Validate() error {
	if s.Start < 0 {
		return fmt.Errorf("start %dms is negative", s.Start)
	}
	if s.Start >= s.End {
		return fmt.Errorf("start %dms is not before end %dms", s.Start, s.End)
	}
	if s.Duration() < MinDurationMS {
		return fmt.Errorf("duration %dms is below the %dms minimum", s.Duration(), MinDurationMS)
	}
	return nil
}

// ValidateWithin runs Validate and additionally checks that the span ends
// within the total document duration. A bound of zero means unbounded.
func (s Span) ValidateWithin(durationMS int64) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if durationMS > 0 && s.End > durationMS {
		return fmt.Errorf("end %dms is past the document end %dms", s.End, durationMS)
	}
	return nil
}

// String renders the span as a timecode range.
func (s Span) String() string {
	return FormatTimecode(s.Start) + "-" + FormatTimecode(s.End)
}
