package backup

import (
	"bytes"
)

const (
	headerSize    = 8
	headerVersion = 1

	flagCompressed = 1 << 0
	flagEncrypted  = 1 << 1
)

var headerMagic = []byte("BZBK")

var algorithmCodes = map[CompressionType]byte{
	CompressionTypeNone: 0,
	CompressionTypeGzip: 1,
	CompressionTypeZstd: 2,
	CompressionTypeLZ4:  3,
}

// ArchiveHeader is the fixed plaintext prefix of every artifact written by
// this version: magic, version, flags, algorithm, reserved.
type ArchiveHeader struct {
	Version    byte
	Compressed bool
	Encrypted  bool
	Algorithm  CompressionType
}

// Marshal encodes the header into its 8-byte form
func (h ArchiveHeader) Marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf, headerMagic)
	buf[4] = headerVersion

	var flags byte
	if h.Compressed {
		flags |= flagCompressed
	}
	if h.Encrypted {
		flags |= flagEncrypted
	}
	buf[5] = flags
	buf[6] = algorithmCodes[h.Algorithm]
	return buf
}

// Check rejects headers written by a format version this build cannot read
func (h ArchiveHeader) Check() error {
	if h.Version != headerVersion {
		return NewCodecError("unsupported artifact format version", nil).
			WithContext("version", int(h.Version)).
			WithContext("supported", headerVersion)
	}
	if h.Compressed && h.Algorithm == CompressionTypeNone {
		return NewCodecError("artifact header names an unknown compression algorithm", nil)
	}
	return nil
}

// ParseHeader splits data into its header and payload. ok is false for
// legacy artifacts that carry no header; payload is then data itself.
func ParseHeader(data []byte) (header ArchiveHeader, payload []byte, ok bool) {
	if len(data) < headerSize || !bytes.Equal(data[:4], headerMagic) {
		return ArchiveHeader{}, data, false
	}

	header = ArchiveHeader{
		Version:    data[4],
		Compressed: data[5]&flagCompressed != 0,
		Encrypted:  data[5]&flagEncrypted != 0,
		Algorithm:  CompressionTypeNone,
	}
	for algorithm, code := range algorithmCodes {
		if code == data[6] {
			header.Algorithm = algorithm
			break
		}
	}
	return header, data[headerSize:], true
}
