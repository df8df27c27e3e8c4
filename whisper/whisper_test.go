package whisper

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestFile(t *testing.T, archives []ArchiveInfo, xff float32, method uint32) *Whisper {
	t.Helper()
	w, err := Create(filepath.Join(t.TempDir(), "test.wsp"), archives, xff, method)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestCreateRejectsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.wsp")
	archives := []ArchiveInfo{{SecondsPerPoint: 60, Points: 10}}
	_, err := Create(path, archives, 0.5, AggregationAverage)
	require.NoError(t, err)

	_, err = Create(path, archives, 0.5, AggregationAverage)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestValidateArchiveListRejectsEmpty(t *testing.T) {
	assert.ErrorIs(t, ValidateArchiveList(nil), ErrInvalidRetention)
}

func TestValidateArchiveListRejectsDuplicateResolution(t *testing.T) {
	archives := []ArchiveInfo{{SecondsPerPoint: 60, Points: 10}, {SecondsPerPoint: 60, Points: 20}}
	assert.ErrorIs(t, ValidateArchiveList(archives), ErrInvalidRetention)
}

func TestValidateArchiveListRejectsNonMultiple(t *testing.T) {
	archives := []ArchiveInfo{{SecondsPerPoint: 60, Points: 10}, {SecondsPerPoint: 70, Points: 20}}
	assert.ErrorIs(t, ValidateArchiveList(archives), ErrInvalidRetention)
}

// Scenario 1: create + read empty.
func TestFetchEmptyArchive(t *testing.T) {
	w := createTestFile(t, []ArchiveInfo{{SecondsPerPoint: 60, Points: 10}}, 0.5, AggregationAverage)

	now := uint32(10000)
	data, err := w.Fetch(now-600, now)
	require.NoError(t, err)

	assert.Equal(t, uint32(60), data.Step)
	assert.Len(t, data.Values, 10)
	for _, v := range data.Values {
		assert.True(t, v.IsNaN())
	}
}

// Scenario 2: single update + fetch.
func TestUpdateThenFetch(t *testing.T) {
	w := createTestFile(t, []ArchiveInfo{{SecondsPerPoint: 60, Points: 10}}, 0.5, AggregationAverage)

	now := uint32(10000)
	target := now - 120
	require.NoError(t, w.Update(42.0, target, now))

	data, err := w.FetchUntil(now-180, now, now)
	require.NoError(t, err)
	require.Len(t, data.Values, 3)

	aligned := quantize(target, 60)
	found := false
	for i, v := range data.Values {
		interval := data.FromInterval + uint32(i)*data.Step
		if interval == aligned {
			assert.Equal(t, Value(42.0), v)
			found = true
		} else {
			assert.True(t, v.IsNaN())
		}
	}
	assert.True(t, found)
}

func TestUpdateRejectsFutureTimestamp(t *testing.T) {
	w := createTestFile(t, []ArchiveInfo{{SecondsPerPoint: 60, Points: 10}}, 0.5, AggregationAverage)
	now := uint32(10000)
	assert.ErrorIs(t, w.Update(1, now+60, now), ErrFutureTimestamp)
}

func TestUpdateRejectsUncoveredTimestamp(t *testing.T) {
	w := createTestFile(t, []ArchiveInfo{{SecondsPerPoint: 60, Points: 10}}, 0.5, AggregationAverage)
	now := uint32(100000)
	assert.ErrorIs(t, w.Update(1, now-(60*10+1000), now), ErrTimestampNotCovered)
}

// Scenario 3: propagation with xFilesFactor gate.
func TestPropagationXFilesFactorGate(t *testing.T) {
	archives := []ArchiveInfo{
		{SecondsPerPoint: 60, Points: 60},
		{SecondsPerPoint: 300, Points: 24},
	}
	w := createTestFile(t, archives, 0.5, AggregationAverage)

	now := uint32(1000000)
	bucketStart := quantize(now-600, 300)

	// three of five slots in the 300s bucket: 3/5 = 0.6 >= 0.5, should propagate.
	require.NoError(t, w.Update(1, bucketStart, now))
	require.NoError(t, w.Update(1, bucketStart+60, now))
	require.NoError(t, w.Update(1, bucketStart+120, now))

	// read the coarse archive directly: FetchUntil would select the
	// finer archive, which still covers bucketStart.
	coarse, err := readRange(w.file, w.Header.Archives[1], bucketStart, bucketStart+300)
	require.NoError(t, err)
	require.Len(t, coarse, 1)
	assert.False(t, coarse[0].IsNaN())
}

func TestPropagationFailsGateBelowThreshold(t *testing.T) {
	archives := []ArchiveInfo{
		{SecondsPerPoint: 60, Points: 60},
		{SecondsPerPoint: 300, Points: 24},
	}
	w := createTestFile(t, archives, 0.5, AggregationAverage)

	now := uint32(1000000)
	bucketStart := quantize(now-600, 300)

	// two of five slots: 2/5 = 0.4 < 0.5, must not propagate.
	require.NoError(t, w.Update(1, bucketStart, now))
	require.NoError(t, w.Update(1, bucketStart+60, now))

	coarse, err := readRange(w.file, w.Header.Archives[1], bucketStart, bucketStart+300)
	require.NoError(t, err)
	require.Len(t, coarse, 1)
	assert.True(t, coarse[0].IsNaN())
}

func TestPropagationMonotonicWithZeroXFF(t *testing.T) {
	archives := []ArchiveInfo{
		{SecondsPerPoint: 60, Points: 60},
		{SecondsPerPoint: 300, Points: 24},
		{SecondsPerPoint: 3600, Points: 24},
	}
	w := createTestFile(t, archives, 0, AggregationAverage)

	now := uint32(10000000)
	target := quantize(now-120, 60)
	require.NoError(t, w.Update(5.0, target, now))

	for _, a := range w.Header.Archives[1:] {
		bucket := quantize(target, a.SecondsPerPoint)
		values, err := readRange(w.file, a, bucket, bucket+a.SecondsPerPoint)
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.False(t, values[0].IsNaN(), "archive with spp=%d should have a propagated point", a.SecondsPerPoint)
	}
}

func TestUpdateManyGroupsAndPropagates(t *testing.T) {
	archives := []ArchiveInfo{
		{SecondsPerPoint: 60, Points: 120},
		{SecondsPerPoint: 300, Points: 48},
	}
	w := createTestFile(t, archives, 0, AggregationAverage)

	now := uint32(10000000)
	base := quantize(now-3000, 60)
	points := []Point{
		{Interval: base, Value: 1},
		{Interval: base + 60, Value: 2},
		{Interval: base + 120, Value: 3},
	}
	require.NoError(t, w.UpdateMany(points, now))

	// FetchUntil starts one step after from, so ask from base-60.
	fine, err := w.FetchUntil(base-60, base+120, now)
	require.NoError(t, err)
	assert.Equal(t, Value(1), fine.Values[0])
	assert.Equal(t, Value(2), fine.Values[1])
	assert.Equal(t, Value(3), fine.Values[2])

	coarseBucket := quantize(base, 300)
	coarse, err := readRange(w.file, w.Header.Archives[1], coarseBucket, coarseBucket+300)
	require.NoError(t, err)
	require.Len(t, coarse, 1)
	assert.False(t, coarse[0].IsNaN())
}

// A first batch into a never-written archive whose points land in
// non-contiguous slots must establish one base for the whole batch,
// not re-derive it (as slot 0) per run.
func TestUpdateManyNonContiguousFirstBatch(t *testing.T) {
	w := createTestFile(t, []ArchiveInfo{{SecondsPerPoint: 60, Points: 120}}, 0, AggregationAverage)

	now := uint32(10000000)
	base := quantize(now-3000, 60)
	points := []Point{
		{Interval: base, Value: 1},
		{Interval: base + 120, Value: 3},
		{Interval: base + 240, Value: 5},
	}
	require.NoError(t, w.UpdateMany(points, now))

	data, err := w.FetchUntil(base-60, base+240, now)
	require.NoError(t, err)
	assert.Equal(t, Value(1), data.Values[0])
	assert.True(t, data.Values[1].IsNaN())
	assert.Equal(t, Value(3), data.Values[2])
	assert.True(t, data.Values[3].IsNaN())
	assert.Equal(t, Value(5), data.Values[4])
}

func TestUpdateManyLastWriterWinsOnDuplicateSlot(t *testing.T) {
	w := createTestFile(t, []ArchiveInfo{{SecondsPerPoint: 60, Points: 60}}, 0.5, AggregationAverage)
	now := uint32(100000)
	base := quantize(now-600, 60)

	points := []Point{
		{Interval: base, Value: 1},
		{Interval: base, Value: 2},
	}
	require.NoError(t, w.UpdateMany(points, now))

	data, err := w.FetchUntil(base, base+60, now)
	require.NoError(t, err)
	assert.Equal(t, Value(2), data.Values[0])
}

func TestSetXFilesFactorAndAggregationMethod(t *testing.T) {
	archives := []ArchiveInfo{
		{SecondsPerPoint: 60, Points: 10},
		{SecondsPerPoint: 300, Points: 24},
	}
	w := createTestFile(t, archives, 0.5, AggregationAverage)

	require.NoError(t, w.SetXFilesFactor(0.9))
	assert.Equal(t, float32(0.9), w.Header.Metadata.XFilesFactor)

	require.NoError(t, w.SetAggregationMethod(AggregationMax))
	assert.Equal(t, AggregationMax, w.Header.Metadata.AggregationMethod)

	reopened, err := Open(w.file.Name())
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, float32(0.9), reopened.Header.Metadata.XFilesFactor)
	assert.Equal(t, AggregationMax, reopened.Header.Metadata.AggregationMethod)

	// writeMetadata must not clobber the on-disk archive count/descriptors.
	require.Len(t, reopened.Header.Archives, len(archives))
	assert.Equal(t, archives[0].SecondsPerPoint, reopened.Header.Archives[0].SecondsPerPoint)
	assert.Equal(t, archives[1].SecondsPerPoint, reopened.Header.Archives[1].SecondsPerPoint)

	now := uint32(100000)
	require.NoError(t, reopened.Update(1, quantize(now, 60), now))
	data, err := reopened.FetchUntil(quantize(now, 60)-60, quantize(now, 60), now)
	require.NoError(t, err)
	require.Len(t, data.Values, 1)
	assert.Equal(t, Value(1), data.Values[0])
}

func TestSetXFilesFactorRejectsOutOfRange(t *testing.T) {
	w := createTestFile(t, []ArchiveInfo{{SecondsPerPoint: 60, Points: 10}}, 0.5, AggregationAverage)
	assert.Error(t, w.SetXFilesFactor(1.5))
}

func TestDumpReturnsPhysicalOrder(t *testing.T) {
	w := createTestFile(t, []ArchiveInfo{{SecondsPerPoint: 60, Points: 4}}, 0.5, AggregationAverage)
	now := uint32(100000)
	require.NoError(t, w.Update(1, quantize(now, 60), now))

	points, err := w.Dump(60)
	require.NoError(t, err)
	assert.Len(t, points, 4)
	// the first write into a fresh archive lands in physical slot 0.
	assert.Equal(t, Point{Interval: quantize(now, 60), Value: 1}, points[0])
}

func TestParseArchiveSpec(t *testing.T) {
	a, err := ParseArchiveSpec("1m:7d")
	require.NoError(t, err)
	assert.Equal(t, uint32(60), a.SecondsPerPoint)
	assert.Equal(t, uint32(7*86400/60), a.Points)
}

func TestParseArchiveSpecRejectsNonMultiple(t *testing.T) {
	_, err := ParseArchiveSpec("7s:10s")
	assert.Error(t, err)
}

func TestParseArchiveSpecRejectsMalformed(t *testing.T) {
	_, err := ParseArchiveSpec("not-a-spec")
	assert.Error(t, err)
}

func TestOpenReadsBackHeader(t *testing.T) {
	archives := []ArchiveInfo{
		{SecondsPerPoint: 60, Points: 60},
		{SecondsPerPoint: 300, Points: 24},
	}
	path := filepath.Join(t.TempDir(), "reopen.wsp")
	w, err := Create(path, archives, 0.5, AggregationSum)
	require.NoError(t, err)
	w.Close()

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, AggregationSum, reopened.Header.Metadata.AggregationMethod)
	require.Len(t, reopened.Header.Archives, 2)
	assert.Equal(t, uint32(60), reopened.Header.Archives[0].SecondsPerPoint)
	assert.Equal(t, uint32(300), reopened.Header.Archives[1].SecondsPerPoint)
}
