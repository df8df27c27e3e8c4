package whisper

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Whisper is an open handle to a Whisper-format file. It is not safe
// for concurrent writers (spec §5: multi-writer safety is external);
// concurrent readers, and a reader racing a writer, are fine since all
// I/O goes through ReadAt/WriteAt rather than a shared file cursor.
type Whisper struct {
	Header Header
	file   *os.File
}

// ArchiveData is the result of a fetch: a dense, step-aligned series
// covering [FromInterval, UntilInterval).
type ArchiveData struct {
	FromInterval  uint32
	UntilInterval uint32
	Step          uint32
	Values        []Value
}

type bySecondsPerPoint []ArchiveInfo

func (a bySecondsPerPoint) Len() int           { return len(a) }
func (a bySecondsPerPoint) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a bySecondsPerPoint) Less(i, j int) bool { return a[i].SecondsPerPoint < a[j].SecondsPerPoint }

// ValidateArchiveList checks the archive invariants from spec §3:
// at least one archive, strictly increasing resolutions, each coarser
// SecondsPerPoint an integer multiple of the next-finer one, strictly
// increasing retentions, and every archive able to consolidate into
// the next. It sorts archives in place, finest first.
func ValidateArchiveList(archives []ArchiveInfo) error {
	if len(archives) == 0 {
		return fmt.Errorf("%w: at least one archive is required", ErrInvalidRetention)
	}

	sort.Sort(bySecondsPerPoint(archives))

	for i := 0; i < len(archives)-1; i++ {
		cur, next := archives[i], archives[i+1]

		if cur.SecondsPerPoint >= next.SecondsPerPoint {
			return fmt.Errorf("%w: archive %d duplicates or is coarser than archive %d", ErrInvalidRetention, i, i+1)
		}
		if next.SecondsPerPoint%cur.SecondsPerPoint != 0 {
			return fmt.Errorf("%w: archive %d's precision does not evenly divide archive %d's", ErrInvalidRetention, i, i+1)
		}
		if next.Retention() <= cur.Retention() {
			return fmt.Errorf("%w: archive %d's retention is not larger than archive %d's", ErrInvalidRetention, i+1, i)
		}
		if cur.Points < next.SecondsPerPoint/cur.SecondsPerPoint {
			return fmt.Errorf("%w: archive %d has too few points to consolidate into archive %d", ErrInvalidRetention, i, i+1)
		}
	}
	return nil
}

// Create makes a new whisper file at path with the given archives,
// xFilesFactor and aggregation method. It fails with ErrAlreadyExists
// if path already exists.
func Create(path string, archives []ArchiveInfo, xFilesFactor float32, aggregationMethod uint32) (*Whisper, error) {
	if xFilesFactor < 0 || xFilesFactor > 1 {
		return nil, fmt.Errorf("%w: xFilesFactor must be in [0,1], got %v", ErrInvalidRetention, xFilesFactor)
	}
	archives = append([]ArchiveInfo(nil), archives...)
	if err := ValidateArchiveList(archives); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrAlreadyExists
		}
		return nil, wrapIo("create", err)
	}

	var maxRetention uint32
	offset := uint32(HeaderFixedSize + ArchiveDescriptorSize*len(archives))
	for i := range archives {
		archives[i].Offset = offset
		offset += archives[i].Size()
		if r := archives[i].Retention(); r > maxRetention {
			maxRetention = r
		}
	}

	header := Header{
		Metadata: Metadata{
			AggregationMethod: aggregationMethod,
			MaxRetention:      maxRetention,
			XFilesFactor:      xFilesFactor,
			ArchiveCount:      uint32(len(archives)),
		},
		Archives: archives,
	}

	if _, err := file.WriteAt(EncodeHeader(header), 0); err != nil {
		file.Close()
		return nil, wrapIo("write header", err)
	}

	totalSize := int64(offset)
	if err := file.Truncate(totalSize); err != nil {
		file.Close()
		return nil, wrapIo("allocate archive space", err)
	}

	return &Whisper{Header: header, file: file}, nil
}

// Open opens an existing whisper file, reading and validating its header.
func Open(path string) (*Whisper, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0o666)
	if err != nil {
		return nil, wrapIo("open", err)
	}

	buf := make([]byte, HeaderFixedSize)
	if _, err := file.ReadAt(buf, 0); err != nil {
		file.Close()
		return nil, ErrCorruptHeader
	}
	// peek at the big-endian archive count (bytes 12..16) to size the
	// full header read.
	archiveCount := uint32(buf[12])<<24 | uint32(buf[13])<<16 | uint32(buf[14])<<8 | uint32(buf[15])
	full := make([]byte, HeaderFixedSize+ArchiveDescriptorSize*int(archiveCount))
	if _, err := file.ReadAt(full, 0); err != nil {
		file.Close()
		return nil, ErrCorruptHeader
	}
	header, err := DecodeHeader(full)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &Whisper{Header: header, file: file}, nil
}

// Close releases the underlying file descriptor.
func (w *Whisper) Close() error {
	return w.file.Close()
}

// Info returns the file's metadata and archive descriptors.
func (w *Whisper) Info() Header {
	return w.Header
}

// archiveForWrite selects the finest archive whose retention covers
// now-timestamp, per spec §4.D. It rejects future and too-old
// timestamps.
func (w *Whisper) archiveForWrite(timestamp, now uint32) (int, error) {
	if timestamp > now {
		return 0, ErrFutureTimestamp
	}
	diff := now - timestamp
	if diff > w.Header.Metadata.MaxRetention {
		return 0, ErrTimestampNotCovered
	}
	for i, a := range w.Header.Archives {
		if a.Retention() >= diff {
			return i, nil
		}
	}
	return 0, ErrTimestampNotCovered
}

// Update writes a single point, selecting its archive by age relative
// to now, then propagates the write upward into coarser archives.
func (w *Whisper) Update(value float64, timestamp, now uint32) error {
	idx, err := w.archiveForWrite(timestamp, now)
	if err != nil {
		return err
	}
	archive := w.Header.Archives[idx]
	quantized := quantize(timestamp, archive.SecondsPerPoint)

	if err := writePoint(w.file, archive, quantized, value); err != nil {
		return err
	}
	return w.propagateFrom(idx, quantized)
}

// UpdateMany writes a batch of points, grouping them by target archive
// (the finest-covering rule, applied per point) and propagating once
// per archive boundary the batch crosses.
func (w *Whisper) UpdateMany(points []Point, now uint32) error {
	if len(points) == 0 {
		return nil
	}
	sorted := append([]Point(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Interval > sorted[j].Interval })

	byArchive := make(map[int][]Point)
	var order []int
	for _, p := range sorted {
		idx, err := w.archiveForWrite(p.Interval, now)
		if err != nil {
			continue // drop points that don't fit in the db, per original semantics
		}
		if _, ok := byArchive[idx]; !ok {
			order = append(order, idx)
		}
		byArchive[idx] = append(byArchive[idx], p)
	}

	propagateFloor := len(w.Header.Archives)
	for _, idx := range order {
		archive := w.Header.Archives[idx]
		if err := writePointsBatch(w.file, archive, byArchive[idx]); err != nil {
			return err
		}
		if idx < propagateFloor {
			propagateFloor = idx
		}
	}
	if propagateFloor == len(w.Header.Archives) {
		return nil
	}

	// propagate once per distinct quantized timestamp written to the
	// finest touched archive, oldest first, into every coarser archive.
	finest := w.Header.Archives[propagateFloor]
	seen := make(map[uint32]bool)
	var intervals []uint32
	for _, p := range byArchive[propagateFloor] {
		q := quantize(p.Interval, finest.SecondsPerPoint)
		if !seen[q] {
			seen[q] = true
			intervals = append(intervals, q)
		}
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i] < intervals[j] })
	for _, interval := range intervals {
		if err := w.propagateFrom(propagateFloor, interval); err != nil {
			return err
		}
	}
	return nil
}

// propagateFrom runs the write-time propagation algorithm of spec
// §4.D starting at archive index idx with aligned timestamp t,
// continuing into every coarser archive until a gate fails or archives
// are exhausted.
func (w *Whisper) propagateFrom(idx int, t uint32) error {
	for j := idx + 1; j < len(w.Header.Archives); j++ {
		higher := w.Header.Archives[j-1]
		lower := w.Header.Archives[j]

		lowerT := quantize(t, lower.SecondsPerPoint)
		bucketLen := int(lower.SecondsPerPoint / higher.SecondsPerPoint)
		bucket, err := readRange(w.file, higher, lowerT, lowerT+lower.SecondsPerPoint)
		if err != nil {
			return err
		}
		if len(bucket) < bucketLen {
			return nil
		}

		if !xFilesFactorOk(bucket, w.Header.Metadata.XFilesFactor) {
			return nil
		}
		value, err := aggregate(w.Header.Metadata.AggregationMethod, bucket)
		if err != nil {
			return err
		}
		if value.IsNaN() {
			return nil
		}
		if err := writePoint(w.file, lower, lowerT, float64(value)); err != nil {
			return err
		}
		t = lowerT
	}
	return nil
}

// archiveForRead selects the smallest-SecondsPerPoint archive whose
// retention reaches back to cover `from`.
func (w *Whisper) archiveForRead(from, now uint32) (ArchiveInfo, bool) {
	for _, a := range w.Header.Archives {
		oldest := now - a.Retention()
		if now < a.Retention() {
			oldest = 0
		}
		if oldest <= from {
			return a, true
		}
	}
	return ArchiveInfo{}, false
}

// Fetch returns the series from interval up to now, choosing the
// finest archive whose retention covers `interval`. The series starts
// at the first step boundary after interval (quantize(interval)+step)
// and ends with the step that contains now. If no archive covers
// interval, an empty series is returned with FromInterval == UntilInterval.
func (w *Whisper) Fetch(interval, now uint32) (ArchiveData, error) {
	return w.FetchUntil(interval, now, now)
}

// FetchUntil is Fetch with an explicit upper bound instead of now: the
// series ends with the step that contains until.
func (w *Whisper) FetchUntil(from, until, now uint32) (ArchiveData, error) {
	archive, ok := w.archiveForRead(from, now)
	if !ok {
		return ArchiveData{FromInterval: from, UntilInterval: from, Step: 0}, nil
	}

	fromInterval := quantize(from, archive.SecondsPerPoint) + archive.SecondsPerPoint
	untilInterval := quantize(until, archive.SecondsPerPoint) + archive.SecondsPerPoint
	if fromInterval >= untilInterval {
		untilInterval = fromInterval
	}

	values, err := readRange(w.file, archive, fromInterval, untilInterval)
	if err != nil {
		return ArchiveData{}, err
	}
	return ArchiveData{
		FromInterval:  fromInterval,
		UntilInterval: untilInterval,
		Step:          archive.SecondsPerPoint,
		Values:        values,
	}, nil
}

// FetchAutoPoints is Fetch, but selects the archive automatically the
// same way Fetch does; it is kept as a distinct name to mirror the
// spec's §4.D operation list (some callers want to be explicit that
// archive resolution, not a fixed step, drives the result).
func (w *Whisper) FetchAutoPoints(interval, now uint32) (ArchiveData, error) {
	return w.Fetch(interval, now)
}

// Dump returns every slot of the archive matching secondsPerPoint, in
// physical (not time) order, for tooling such as whisper-dump.
func (w *Whisper) Dump(secondsPerPoint uint32) ([]Point, error) {
	var archive ArchiveInfo
	found := false
	for _, a := range w.Header.Archives {
		if a.SecondsPerPoint == secondsPerPoint {
			archive, found = a, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("whisper: no archive with %d seconds per point", secondsPerPoint)
	}

	buf := make([]byte, archive.Size())
	if _, err := w.file.ReadAt(buf, int64(archive.Offset)); err != nil {
		return nil, wrapIo("dump archive", err)
	}

	points := make([]Point, archive.Points)
	for i := range points {
		interval, value, err := DecodePoint(buf[i*PointSize : (i+1)*PointSize])
		if err != nil {
			return nil, err
		}
		points[i] = Point{Interval: interval, Value: Value(value)}
	}
	return points, nil
}

// SetXFilesFactor mutates the header's xFilesFactor in place.
func (w *Whisper) SetXFilesFactor(xff float32) error {
	if xff < 0 || xff > 1 {
		return fmt.Errorf("%w: xFilesFactor must be in [0,1], got %v", ErrInvalidRetention, xff)
	}
	w.Header.Metadata.XFilesFactor = xff
	return w.writeMetadata()
}

// SetAggregationMethod mutates the header's aggregation method in place.
func (w *Whisper) SetAggregationMethod(method uint32) error {
	if AggregationMethodName(method) == "" {
		return fmt.Errorf("whisper: unknown aggregation method %d", method)
	}
	w.Header.Metadata.AggregationMethod = method
	return w.writeMetadata()
}

func (w *Whisper) writeMetadata() error {
	buf := EncodeHeader(w.Header)
	_, err := w.file.WriteAt(buf[:HeaderFixedSize], 0)
	return wrapIo("write metadata", err)
}

var precisionRegexp = regexp.MustCompile(`^(\d+)([smhdwy]?)$`)

var unitSeconds = map[string]uint32{
	"":  1,
	"s": 1,
	"m": 60,
	"h": 3600,
	"d": 86400,
	"w": 604800,
	"y": 31536000,
}

// ParseArchiveSpec parses a retention specification like "1m:7d"
// ("secondsPerPoint:retention", each side an integer with an optional
// s/m/h/d/w/y unit suffix) into an ArchiveInfo. This is the Go
// generalization of the original whisper tooling's archive-spec
// mini-language, used by whisper-create-style callers and tests.
func ParseArchiveSpec(spec string) (ArchiveInfo, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return ArchiveInfo{}, fmt.Errorf("whisper: invalid archive spec %q, expected PRECISION:RETENTION", spec)
	}

	secondsPerPoint, err := parseDuration(parts[0])
	if err != nil {
		return ArchiveInfo{}, fmt.Errorf("whisper: invalid precision in %q: %w", spec, err)
	}

	retention, err := parseDuration(parts[1])
	if err != nil {
		return ArchiveInfo{}, fmt.Errorf("whisper: invalid retention in %q: %w", spec, err)
	}

	if retention%secondsPerPoint != 0 {
		return ArchiveInfo{}, fmt.Errorf("whisper: retention %q is not a multiple of precision %q", parts[1], parts[0])
	}

	return ArchiveInfo{SecondsPerPoint: secondsPerPoint, Points: retention / secondsPerPoint}, nil
}

func parseDuration(s string) (uint32, error) {
	m := precisionRegexp.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	n, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, err
	}
	mult, ok := unitSeconds[m[2]]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", m[2])
	}
	return uint32(n) * mult, nil
}

// now returns the current Unix timestamp. It exists as a seam so
// callers that need reproducible behaviour (tests, fill/merge tools)
// read the clock exactly once and pass the result through explicitly,
// matching spec §5's "reads the system clock once, at entry" rule.
func now() uint32 {
	return uint32(time.Now().Unix())
}

// Now exposes the single clock read used by this package's own
// CLI-facing helpers.
func Now() uint32 {
	return now()
}
