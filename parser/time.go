// Package parser implements the small time-expression grammar used by
// the render and find HTTP endpoints: relative offsets like "-5min",
// named constants like "now"/"yesterday", and raw epoch seconds.
package parser

import (
	"errors"
	"regexp"
	"strconv"
)

// ParseError is returned for any input that doesn't match the grammar.
type ParseError struct {
	Input string
	Msg   string
}

func (e *ParseError) Error() string {
	return "parser: cannot parse time expression " + strconv.Quote(e.Input) + ": " + e.Msg
}

// ErrTimeParse is the sentinel all ParseError values wrap/compare to
// with errors.Is.
var ErrTimeParse = errors.New("parser: time parse error")

func (e *ParseError) Unwrap() error { return ErrTimeParse }

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)
var relativeExpr = regexp.MustCompile(`^-([0-9]+)(s|min|h|d|w|mon|y)$`)

// unitSeconds maps a relative-expression unit suffix to its length in
// seconds, per spec §4.F.
var unitSeconds = map[string]uint32{
	"s":   1,
	"min": 60,
	"h":   3600,
	"d":   86400,
	"w":   604800,
	"mon": 2592000,
	"y":   31536000,
}

// Parse resolves a time expression relative to now (a Unix timestamp),
// per spec §4.F:
//
//	""            -> 0
//	digits        -> parsed as epoch seconds
//	"now"         -> now
//	"yesterday"   -> now - 86400
//	"-<N><unit>"  -> now - N*unitSeconds[unit]
//
// Anything else fails with ParseError wrapping ErrTimeParse.
func Parse(s string, now uint32) (uint32, error) {
	switch {
	case s == "":
		return 0, nil
	case s == "now":
		return now, nil
	case s == "yesterday":
		return now - 86400, nil
	case digitsOnly.MatchString(s):
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return 0, &ParseError{Input: s, Msg: err.Error()}
		}
		return uint32(n), nil
	default:
		if m := relativeExpr.FindStringSubmatch(s); m != nil {
			n, err := strconv.ParseUint(m[1], 10, 32)
			if err != nil {
				return 0, &ParseError{Input: s, Msg: err.Error()}
			}
			return now - uint32(n)*unitSeconds[m[2]], nil
		}
		return 0, &ParseError{Input: s, Msg: "unrecognized time expression"}
	}
}
