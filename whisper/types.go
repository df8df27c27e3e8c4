// Package whisper implements a fixed-size, self-contained time-series
// file format compatible with the Graphite Whisper on-disk layout: a
// header followed by one or more fixed-length circular archives of
// decreasing resolution.
package whisper

import (
	"fmt"
	"math"
	"strconv"
)

// Aggregation method tags, as stored in the file header.
const (
	AggregationAverage uint32 = 1
	AggregationSum     uint32 = 2
	AggregationLast    uint32 = 3
	AggregationMax     uint32 = 4
	AggregationMin     uint32 = 5
	AggregationAvgZero uint32 = 6
	AggregationAbsMax  uint32 = 7
	AggregationAbsMin  uint32 = 8
)

// AggregationMethodName returns the canonical lowercase name of an
// aggregation method tag, or "" if the tag is unknown.
func AggregationMethodName(method uint32) string {
	switch method {
	case AggregationAverage:
		return "average"
	case AggregationSum:
		return "sum"
	case AggregationLast:
		return "last"
	case AggregationMax:
		return "max"
	case AggregationMin:
		return "min"
	case AggregationAvgZero:
		return "avg_zero"
	case AggregationAbsMax:
		return "absmax"
	case AggregationAbsMin:
		return "absmin"
	default:
		return ""
	}
}

// ParseAggregationMethod converts a canonical aggregation name back
// into its header tag. Returns an error for any unrecognized name.
func ParseAggregationMethod(name string) (uint32, error) {
	switch name {
	case "average":
		return AggregationAverage, nil
	case "sum":
		return AggregationSum, nil
	case "last":
		return AggregationLast, nil
	case "max":
		return AggregationMax, nil
	case "min":
		return AggregationMin, nil
	case "avg_zero":
		return AggregationAvgZero, nil
	case "absmax":
		return AggregationAbsMax, nil
	case "absmin":
		return AggregationAbsMin, nil
	default:
		return 0, fmt.Errorf("whisper: unknown aggregation method %q", name)
	}
}

// PointSize is the on-disk size, in bytes, of a single archive slot:
// a 4-byte interval and an 8-byte value.
const PointSize = 12

// HeaderFixedSize is the byte size of the fixed portion of the header,
// before the per-archive descriptors.
const HeaderFixedSize = 4 + 4 + 4 + 4

// ArchiveDescriptorSize is the byte size of one archive descriptor
// entry within the header.
const ArchiveDescriptorSize = 4 + 4 + 4

// Metadata holds the fixed header fields common to the whole file.
type Metadata struct {
	AggregationMethod uint32
	MaxRetention      uint32
	XFilesFactor      float32
	ArchiveCount      uint32
}

// ArchiveInfo describes one circular archive within a file.
type ArchiveInfo struct {
	Offset          uint32
	SecondsPerPoint uint32
	Points          uint32
}

// Retention returns the total time span, in seconds, covered by the archive.
func (a ArchiveInfo) Retention() uint32 {
	return a.SecondsPerPoint * a.Points
}

// Size returns the archive's raw byte size.
func (a ArchiveInfo) Size() uint32 {
	return a.Points * PointSize
}

// End returns the byte offset one past the archive's last slot.
func (a ArchiveInfo) End() uint32 {
	return a.Offset + a.Size()
}

// Header is the fully decoded file header: metadata plus archive
// descriptors, always stored finest (smallest SecondsPerPoint) first.
type Header struct {
	Metadata Metadata
	Archives []ArchiveInfo
}

// Point is a single (interval, value) sample.
type Point struct {
	Interval uint32
	Value    Value
}

// Value is a float64 that serializes to JSON `null` when it is NaN,
// used throughout this package as the "no data" sentinel instead of a
// pointer or boolean-tagged pair.
type Value float64

// NaN is the canonical "no data" Value.
var NaN = Value(math.NaN())

// IsNaN reports whether v represents "no data".
func (v Value) IsNaN() bool {
	return math.IsNaN(float64(v))
}

// MarshalJSON renders NaN as `null` and any other value as a plain
// JSON number.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNaN() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(v), 'g', -1, 64)), nil
}

// UnmarshalJSON accepts `null` as NaN and any JSON number otherwise.
func (v *Value) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*v = NaN
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*v = Value(f)
	return nil
}
