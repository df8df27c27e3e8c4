package whisper

// Fill copies points from src into dst wherever dst's slot is null and
// src's corresponding slot is not, for every archive in dst, over the
// range FetchUntil(now-retention, until, now) returns: from the first
// step after now-retention through the step containing until.
// Existing non-null points in dst are never
// touched. Source and destination need not share an archive schedule;
// alignment is by timestamp, not by slot.
func Fill(src, dst *Whisper, now, until uint32) error {
	for _, archive := range dst.Header.Archives {
		from := uint32(0)
		if now > archive.Retention() {
			from = now - archive.Retention()
		}
		if from > until {
			continue
		}

		dstData, err := dst.FetchUntil(from, until, now)
		if err != nil {
			return err
		}
		if len(dstData.Values) == 0 {
			continue
		}

		// query src over the same raw [from, until] bounds dst used, not
		// dstData's already-aligned interval, which would double-shift.
		srcData, err := src.FetchUntil(from, until, now)
		if err != nil {
			return err
		}

		var toWrite []Point
		for i, dv := range dstData.Values {
			if !dv.IsNaN() {
				continue
			}
			sv, ok := valueAt(srcData, dstData.FromInterval+uint32(i)*dstData.Step)
			if !ok || sv.IsNaN() {
				continue
			}
			toWrite = append(toWrite, Point{Interval: dstData.FromInterval + uint32(i)*dstData.Step, Value: sv})
		}
		if err := writePointsBatch(dst.file, archive, toWrite); err != nil {
			return err
		}
	}
	return nil
}

// Merge copies every non-null src point into dst, for every archive in
// dst, overwriting existing dst points, unlike Fill. The range is the
// one FetchUntil(from, until, now) returns (clamped to the archive's
// retention): from the first step after from through the step
// containing until; the step containing from itself is not copied.
func Merge(src, dst *Whisper, from, until, now uint32) error {
	for _, archive := range dst.Header.Archives {
		lo := from
		if now > archive.Retention() && now-archive.Retention() > lo {
			lo = now - archive.Retention()
		}
		if lo > until {
			continue
		}

		dstData, err := dst.FetchUntil(lo, until, now)
		if err != nil {
			return err
		}
		if len(dstData.Values) == 0 {
			continue
		}

		// query src over the same raw [lo, until] bounds dst used, not
		// dstData's already-aligned interval, which would double-shift.
		srcData, err := src.FetchUntil(lo, until, now)
		if err != nil {
			return err
		}

		var toWrite []Point
		for i := 0; i < len(dstData.Values); i++ {
			interval := dstData.FromInterval + uint32(i)*dstData.Step
			sv, ok := valueAt(srcData, interval)
			if !ok || sv.IsNaN() {
				continue
			}
			toWrite = append(toWrite, Point{Interval: interval, Value: sv})
		}
		if err := writePointsBatch(dst.file, archive, toWrite); err != nil {
			return err
		}
	}
	return nil
}

// valueAt looks up the value in data aligned to the given absolute
// interval, accounting for data's own step possibly differing from the
// caller's stride.
func valueAt(data ArchiveData, interval uint32) (Value, bool) {
	if data.Step == 0 || interval < data.FromInterval || interval >= data.UntilInterval {
		return NaN, false
	}
	if (interval-data.FromInterval)%data.Step != 0 {
		return NaN, false
	}
	idx := (interval - data.FromInterval) / data.Step
	if int(idx) >= len(data.Values) {
		return NaN, false
	}
	return data.Values[idx], true
}
