package expert

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/klauspost/compress/zstd"

	apperrors "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/errors"
)

// Blob layout: a fixed little-endian header, a zstd-compressed JSON payload
// and a crc32 of the compressed payload.
const (
	MagicBytes    uint32 = 0x51414558
	FormatVersion uint32 = 1
	HeaderSize    int    = 32
	FooterSize    int    = 4
)

type section uint16

const (
	sectionModel section = 1
	sectionIndex section = 2
)

func (s section) String() string {
	if s == sectionIndex {
		return "index"
	}
	return "model"
}

// BlobHeader is the header written at the start of every model and index
// file.
type BlobHeader struct {
	Magic       uint32
	Version     uint32
	Kind        Kind
	Section     section
	NumFeatures uint32
	DocCount    uint64
	PayloadLen  uint64
}

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

func encodeBlob(kind Kind, sec section, numFeatures, docCount int, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", sec, err)
	}
	compressed := zstdEncoder.EncodeAll(raw, nil)

	buf := make([]byte, HeaderSize, HeaderSize+len(compressed)+FooterSize)
	binary.LittleEndian.PutUint32(buf[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(buf[4:8], FormatVersion)
	binary.LittleEndian.PutUint16(buf[8:10], uint16(kind))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(sec))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(numFeatures))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(docCount))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(len(compressed)))
	buf = append(buf, compressed...)
	buf = binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(compressed))
	return buf, nil
}

// decodeBlob validates data against the expected kind, section and feature
// count and unmarshals its payload into out. Damaged bytes are
// ErrCorruptCache; a well-formed blob built under another configuration is
// ErrIndexLoad.
func decodeBlob(data []byte, kind Kind, sec section, numFeatures int, out any) (BlobHeader, error) {
	var h BlobHeader
	if len(data) < HeaderSize+FooterSize {
		return h, fmt.Errorf("%s blob truncated at %d bytes: %w", sec, len(data), apperrors.ErrCorruptCache)
	}
	h = BlobHeader{
		Magic:       binary.LittleEndian.Uint32(data[0:4]),
		Version:     binary.LittleEndian.Uint32(data[4:8]),
		Kind:        Kind(binary.LittleEndian.Uint16(data[8:10])),
		Section:     section(binary.LittleEndian.Uint16(data[10:12])),
		NumFeatures: binary.LittleEndian.Uint32(data[12:16]),
		DocCount:    binary.LittleEndian.Uint64(data[16:24]),
		PayloadLen:  binary.LittleEndian.Uint64(data[24:32]),
	}
	if h.Magic != MagicBytes {
		return h, fmt.Errorf("%s blob: bad magic bytes %x: %w", sec, h.Magic, apperrors.ErrCorruptCache)
	}
	if uint64(len(data)-HeaderSize-FooterSize) != h.PayloadLen {
		return h, fmt.Errorf("%s blob: payload is %d bytes, header says %d: %w",
			sec, len(data)-HeaderSize-FooterSize, h.PayloadLen, apperrors.ErrCorruptCache)
	}
	payload := data[HeaderSize : HeaderSize+int(h.PayloadLen)]
	if sum := binary.LittleEndian.Uint32(data[len(data)-FooterSize:]); sum != crc32.ChecksumIEEE(payload) {
		return h, fmt.Errorf("%s blob: checksum mismatch: %w", sec, apperrors.ErrCorruptCache)
	}

	if h.Version != FormatVersion {
		return h, fmt.Errorf("%s blob: format version %d, want %d: %w", sec, h.Version, FormatVersion, apperrors.ErrIndexLoad)
	}
	if h.Section != sec {
		return h, fmt.Errorf("blob holds a %s, want %s: %w", h.Section, sec, apperrors.ErrIndexLoad)
	}
	if h.Kind != kind {
		return h, fmt.Errorf("%s blob built by %s expert, want %s: %w", sec, h.Kind, kind, apperrors.ErrIndexLoad)
	}
	if int(h.NumFeatures) != numFeatures {
		return h, fmt.Errorf("%s blob has %d features, configured %d: %w", sec, h.NumFeatures, numFeatures, apperrors.ErrIndexLoad)
	}

	raw, err := zstdDecoder.DecodeAll(payload, nil)
	if err != nil {
		return h, fmt.Errorf("%s blob: decompressing: %v: %w", sec, err, apperrors.ErrCorruptCache)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return h, fmt.Errorf("%s blob: parsing payload: %v: %w", sec, err, apperrors.ErrCorruptCache)
	}
	return h, nil
}
