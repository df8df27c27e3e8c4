package whisper

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeHeader serializes a Header into its on-disk byte representation:
// the fixed metadata block followed by one descriptor per archive, in
// the order given (callers are expected to have already sorted
// archives finest-first).
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderFixedSize+ArchiveDescriptorSize*len(h.Archives))

	binary.BigEndian.PutUint32(buf[0:4], h.Metadata.AggregationMethod)
	binary.BigEndian.PutUint32(buf[4:8], h.Metadata.MaxRetention)
	binary.BigEndian.PutUint32(buf[8:12], math.Float32bits(h.Metadata.XFilesFactor))
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(h.Archives)))

	off := HeaderFixedSize
	for _, a := range h.Archives {
		binary.BigEndian.PutUint32(buf[off:off+4], a.Offset)
		binary.BigEndian.PutUint32(buf[off+4:off+8], a.SecondsPerPoint)
		binary.BigEndian.PutUint32(buf[off+8:off+12], a.Points)
		off += ArchiveDescriptorSize
	}
	return buf
}

// DecodeHeader parses the bytes produced by EncodeHeader. It returns
// CorruptHeader if buf is too short to hold its own declared archive count.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderFixedSize {
		return Header{}, ErrCorruptHeader
	}

	meta := Metadata{
		AggregationMethod: binary.BigEndian.Uint32(buf[0:4]),
		MaxRetention:      binary.BigEndian.Uint32(buf[4:8]),
		XFilesFactor:      math.Float32frombits(binary.BigEndian.Uint32(buf[8:12])),
		ArchiveCount:      binary.BigEndian.Uint32(buf[12:16]),
	}

	need := HeaderFixedSize + int(meta.ArchiveCount)*ArchiveDescriptorSize
	if need < HeaderFixedSize || len(buf) < need {
		return Header{}, ErrCorruptHeader
	}

	archives := make([]ArchiveInfo, meta.ArchiveCount)
	off := HeaderFixedSize
	for i := range archives {
		archives[i] = ArchiveInfo{
			Offset:          binary.BigEndian.Uint32(buf[off : off+4]),
			SecondsPerPoint: binary.BigEndian.Uint32(buf[off+4 : off+8]),
			Points:          binary.BigEndian.Uint32(buf[off+8 : off+12]),
		}
		off += ArchiveDescriptorSize
	}

	return Header{Metadata: meta, Archives: archives}, nil
}

// EncodePoint serializes a single 12-byte archive slot.
func EncodePoint(interval uint32, value float64) []byte {
	buf := make([]byte, PointSize)
	binary.BigEndian.PutUint32(buf[0:4], interval)
	binary.BigEndian.PutUint64(buf[4:12], math.Float64bits(value))
	return buf
}

// DecodePoint parses a single 12-byte archive slot.
func DecodePoint(buf []byte) (interval uint32, value float64, err error) {
	if len(buf) != PointSize {
		return 0, 0, fmt.Errorf("whisper: point buffer must be %d bytes, got %d", PointSize, len(buf))
	}
	interval = binary.BigEndian.Uint32(buf[0:4])
	value = math.Float64frombits(binary.BigEndian.Uint64(buf[4:12]))
	return interval, value, nil
}
