package types

import (
	"errors"
	"strings"
)

var ErrInvalidSegment = errors.New("segment must be one of FAIR, PARTY, BUFFET")

// Segment is one independently tracked area of the event.  Each segment
// keeps its own entry/exit bookkeeping for the same participant.
type Segment string

const (
	SegmentFair   Segment = "FAIR"
	SegmentParty  Segment = "PARTY"
	SegmentBuffet Segment = "BUFFET"
)

// Segments lists every known segment in display order.
var Segments = []Segment{SegmentFair, SegmentParty, SegmentBuffet}

func (s Segment) Valid() bool {
	switch s {
	case SegmentFair, SegmentParty, SegmentBuffet:
		return true
	}
	return false
}

func (s Segment) String() string { return string(s) }

// ParseSegment accepts any casing and surrounding whitespace.
func ParseSegment(v string) (Segment, error) {
	s := Segment(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", ErrInvalidSegment
	}
	return s, nil
}
