package whisper

import (
	"os"
	"sort"
)

// readBase returns slot 0 of the archive, whatever it currently holds
// (a zero-timestamp point means the archive has never been written).
func readBase(file *os.File, archive ArchiveInfo) (Point, error) {
	buf := make([]byte, PointSize)
	if _, err := file.ReadAt(buf, int64(archive.Offset)); err != nil {
		return Point{}, wrapIo("read base point", err)
	}
	interval, value, err := DecodePoint(buf)
	if err != nil {
		return Point{}, err
	}
	return Point{Interval: interval, Value: Value(value)}, nil
}

// slotOffset computes the byte offset within the file of the slot that
// would hold targetInterval, given the archive's current base
// interval. It operates in modular arithmetic over the archive's point
// count so it is correct for intervals both ahead of and behind base.
func slotOffset(archive ArchiveInfo, baseInterval, targetInterval uint32) uint32 {
	if baseInterval == 0 {
		return archive.Offset
	}
	// time and point distances are computed as signed so intervals
	// "before" base wrap correctly via Go's truncating mod.
	timeDistance := int64(targetInterval) - int64(baseInterval)
	pointDistance := timeDistance / int64(archive.SecondsPerPoint)
	points := int64(archive.Points)
	byteDistance := ((pointDistance % points) + points) % points * PointSize
	return archive.Offset + uint32(byteDistance)
}

// quantize aligns a timestamp down to the archive's resolution.
func quantize(interval, secondsPerPoint uint32) uint32 {
	return interval - (interval % secondsPerPoint)
}

// readRange reads every slot of the archive spanning [from, until),
// quantized to the archive's resolution, and returns a dense slice
// indexed by step. Slots whose stored interval doesn't match the
// interval expected for that step are reported as NaN, per spec §4.B
// ("any slot whose stored interval does not equal its expected
// interval is yielded as None").
func readRange(file *os.File, archive ArchiveInfo, fromInterval, untilInterval uint32) ([]Value, error) {
	step := archive.SecondsPerPoint
	numPoints := int((untilInterval - fromInterval) / step)
	if numPoints <= 0 {
		return nil, nil
	}

	base, err := readBase(file, archive)
	if err != nil {
		return nil, err
	}

	result := make([]Value, numPoints)
	for i := range result {
		result[i] = NaN
	}
	if base.Interval == 0 {
		return result, nil
	}

	startOffset := slotOffset(archive, base.Interval, fromInterval)
	raw, err := readBytesWrapping(file, archive, startOffset, uint32(numPoints)*PointSize)
	if err != nil {
		return nil, err
	}

	expected := fromInterval
	for i := 0; i < numPoints; i++ {
		interval, value, err := DecodePoint(raw[i*PointSize : (i+1)*PointSize])
		if err != nil {
			return nil, err
		}
		if interval == expected {
			result[i] = Value(value)
		}
		expected += step
	}
	return result, nil
}

// readBytesWrapping reads length bytes starting at startOffset within
// archive, wrapping around to archive.Offset at most once if the
// requested range runs past the archive's end.
func readBytesWrapping(file *os.File, archive ArchiveInfo, startOffset, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	tillEnd := archive.End() - startOffset
	if length <= tillEnd {
		if _, err := file.ReadAt(buf, int64(startOffset)); err != nil {
			return nil, wrapIo("read archive range", err)
		}
		return buf, nil
	}

	if _, err := file.ReadAt(buf[:tillEnd], int64(startOffset)); err != nil {
		return nil, wrapIo("read archive range (first segment)", err)
	}
	if _, err := file.ReadAt(buf[tillEnd:], int64(archive.Offset)); err != nil {
		return nil, wrapIo("read archive range (wrapped segment)", err)
	}
	return buf, nil
}

// writeBytesWrapping is the write-side counterpart of readBytesWrapping.
func writeBytesWrapping(file *os.File, archive ArchiveInfo, startOffset uint32, data []byte) error {
	tillEnd := archive.End() - startOffset
	if uint32(len(data)) <= tillEnd {
		_, err := file.WriteAt(data, int64(startOffset))
		return wrapIo("write archive range", err)
	}

	if _, err := file.WriteAt(data[:tillEnd], int64(startOffset)); err != nil {
		return wrapIo("write archive range (first segment)", err)
	}
	if _, err := file.WriteAt(data[tillEnd:], int64(archive.Offset)); err != nil {
		return wrapIo("write archive range (wrapped segment)", err)
	}
	return nil
}

// writePoint quantizes interval to the archive's resolution and writes
// a single 12-byte record at the slot it maps to.
func writePoint(file *os.File, archive ArchiveInfo, interval uint32, value float64) error {
	interval = quantize(interval, archive.SecondsPerPoint)
	base, err := readBase(file, archive)
	if err != nil {
		return err
	}
	offset := slotOffset(archive, base.Interval, interval)
	if base.Interval == 0 {
		offset = archive.Offset
	}
	return writeBytesWrapping(file, archive, offset, EncodePoint(interval, value))
}

// writePointsBatch writes a set of points to the archive, sorting by
// interval and collapsing runs of contiguous slots into single writes.
// Points outside the archive's point count are rejected by the caller
// via ordinary propagation/selection logic; this function trusts its
// input is well-formed for this archive.
func writePointsBatch(file *os.File, archive ArchiveInfo, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	quantized := make([]Point, len(points))
	for i, p := range points {
		quantized[i] = Point{Interval: quantize(p.Interval, archive.SecondsPerPoint), Value: p.Value}
	}
	sort.SliceStable(quantized, func(i, j int) bool { return quantized[i].Interval < quantized[j].Interval })

	// de-duplicate identical timestamps, keeping the last writer.
	deduped := quantized[:0:0]
	for i, p := range quantized {
		if i > 0 && p.Interval == quantized[i-1].Interval {
			deduped[len(deduped)-1] = p
			continue
		}
		deduped = append(deduped, p)
	}

	base, err := readBase(file, archive)
	if err != nil {
		return err
	}
	// A never-written archive has no base slot yet: the first point of
	// this batch establishes it, landing at archive.Offset. Later runs
	// in the same batch must be positioned relative to that same base,
	// not re-derived per run (which would collapse every run back onto
	// slot 0).
	if base.Interval == 0 {
		base = Point{Interval: deduped[0].Interval}
	}

	step := archive.SecondsPerPoint
	runStart := 0
	for i := 1; i <= len(deduped); i++ {
		if i < len(deduped) && deduped[i].Interval == deduped[i-1].Interval+step {
			continue
		}
		run := deduped[runStart:i]
		if err := writeContiguousRun(file, archive, base, run); err != nil {
			return err
		}
		runStart = i
	}
	return nil
}

func writeContiguousRun(file *os.File, archive ArchiveInfo, base Point, run []Point) error {
	buf := make([]byte, len(run)*PointSize)
	for i, p := range run {
		copy(buf[i*PointSize:(i+1)*PointSize], EncodePoint(p.Interval, float64(p.Value)))
	}
	offset := slotOffset(archive, base.Interval, run[0].Interval)
	return writeBytesWrapping(file, archive, offset, buf)
}
