package whisper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func vals(xs ...float64) []Value {
	out := make([]Value, len(xs))
	for i, x := range xs {
		out[i] = Value(x)
	}
	return out
}

func TestAggregateAverage(t *testing.T) {
	v, err := aggregate(AggregationAverage, vals(1, 2, 3))
	assert.NoError(t, err)
	assert.Equal(t, Value(2), v)
}

func TestAggregateAverageSkipsNaN(t *testing.T) {
	values := []Value{Value(1), NaN, Value(3)}
	v, err := aggregate(AggregationAverage, values)
	assert.NoError(t, err)
	assert.Equal(t, Value(2), v)
}

func TestAggregateSum(t *testing.T) {
	v, _ := aggregate(AggregationSum, vals(1, 2, 3))
	assert.Equal(t, Value(6), v)
}

func TestAggregateLast(t *testing.T) {
	v, _ := aggregate(AggregationLast, vals(1, 2, 3))
	assert.Equal(t, Value(3), v)
}

func TestAggregateLastSkipsTrailingNaN(t *testing.T) {
	values := []Value{Value(1), Value(2), NaN}
	v, _ := aggregate(AggregationLast, values)
	assert.Equal(t, Value(2), v)
}

func TestAggregateMaxMin(t *testing.T) {
	max, _ := aggregate(AggregationMax, vals(1, -5, 3))
	min, _ := aggregate(AggregationMin, vals(1, -5, 3))
	assert.Equal(t, Value(3), max)
	assert.Equal(t, Value(-5), min)
}

func TestAggregateAvgZero(t *testing.T) {
	values := []Value{Value(2), NaN, Value(4)}
	v, _ := aggregate(AggregationAvgZero, values)
	assert.Equal(t, Value(2), v) // (2 + 0 + 4) / 3
}

func TestAggregateAbsMaxAbsMin(t *testing.T) {
	absMax, _ := aggregate(AggregationAbsMax, vals(1, -5, 3))
	absMin, _ := aggregate(AggregationAbsMin, vals(1, -5, 3))
	assert.Equal(t, Value(-5), absMax) // magnitude 5 wins, sign retained
	assert.Equal(t, Value(1), absMin)
}

func TestAggregateUnknownMethod(t *testing.T) {
	_, err := aggregate(99, vals(1))
	assert.Error(t, err)
}

func TestXFilesFactorGate(t *testing.T) {
	bucket := []Value{Value(1), Value(1), Value(1), NaN, NaN}
	assert.True(t, xFilesFactorOk(bucket, 0.5)) // 3/5 = 0.6 >= 0.5

	twoOfFive := []Value{Value(1), Value(1), NaN, NaN, NaN}
	assert.False(t, xFilesFactorOk(twoOfFive, 0.5)) // 2/5 = 0.4 < 0.5
}
