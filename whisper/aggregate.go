package whisper

import (
	"fmt"
	"math"
)

// xFilesFactorOk reports whether enough of a bucket's points are
// non-null to propagate an aggregate, per spec §4.C: k/n >= xff where
// k is the non-null count and n the bucket length.
func xFilesFactorOk(values []Value, xff float32) bool {
	if len(values) == 0 {
		return false
	}
	k := 0
	for _, v := range values {
		if !v.IsNaN() {
			k++
		}
	}
	return float32(k)/float32(len(values)) >= xff
}

// aggregate combines a bucket of higher-resolution values into a
// single lower-resolution value using the named method. It does not
// apply the xFilesFactor gate itself; callers must check
// xFilesFactorOk first and skip the write if it fails.
func aggregate(method uint32, values []Value) (Value, error) {
	switch method {
	case AggregationAverage:
		return aggregateAverage(values), nil
	case AggregationSum:
		return aggregateSum(values), nil
	case AggregationLast:
		return aggregateLast(values), nil
	case AggregationMax:
		return aggregateExtreme(values, false, false), nil
	case AggregationMin:
		return aggregateExtreme(values, true, false), nil
	case AggregationAvgZero:
		return aggregateAvgZero(values), nil
	case AggregationAbsMax:
		return aggregateExtreme(values, false, true), nil
	case AggregationAbsMin:
		return aggregateExtreme(values, true, true), nil
	default:
		return NaN, fmt.Errorf("whisper: unknown aggregation method %d", method)
	}
}

func aggregateAverage(values []Value) Value {
	sum := 0.0
	n := 0
	for _, v := range values {
		if v.IsNaN() {
			continue
		}
		sum += float64(v)
		n++
	}
	if n == 0 {
		return NaN
	}
	return Value(sum / float64(n))
}

func aggregateSum(values []Value) Value {
	sum := 0.0
	any := false
	for _, v := range values {
		if v.IsNaN() {
			continue
		}
		sum += float64(v)
		any = true
	}
	if !any {
		return NaN
	}
	return Value(sum)
}

func aggregateAvgZero(values []Value) Value {
	if len(values) == 0 {
		return NaN
	}
	sum := 0.0
	for _, v := range values {
		if !v.IsNaN() {
			sum += float64(v)
		}
	}
	return Value(sum / float64(len(values)))
}

func aggregateLast(values []Value) Value {
	for i := len(values) - 1; i >= 0; i-- {
		if !values[i].IsNaN() {
			return values[i]
		}
	}
	return NaN
}

// aggregateExtreme implements Min/Max/AbsMin/AbsMax: min selects the
// smallest value (or smallest magnitude for abs), otherwise the
// largest; the original signed value is always retained.
func aggregateExtreme(values []Value, min, abs bool) Value {
	best := NaN
	bestKey := 0.0
	found := false
	for _, v := range values {
		if v.IsNaN() {
			continue
		}
		key := float64(v)
		if abs {
			key = math.Abs(key)
		}
		if !found {
			best, bestKey, found = v, key, true
			continue
		}
		if (min && key < bestKey) || (!min && key > bestKey) {
			best, bestKey = v, key
		}
	}
	if !found {
		return NaN
	}
	return best
}
