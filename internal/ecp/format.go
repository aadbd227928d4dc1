// Package ecp implements the encrypted chart package (.ecp) container:
// a fixed 512-byte header, an AEAD-sealed JSON index, and AEAD-sealed
// per-entry payloads. It provides both the builder (offset fix-up, single
// index seal) and the reader (header validate, index decrypt, on-demand
// entry decrypt).
package ecp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MagicBytes identifies an ECP container: ASCII "AIPK".
var MagicBytes = [4]byte{'A', 'I', 'P', 'K'}

const (
	// CurrentVersionMajor/Minor is the format version this package writes.
	CurrentVersionMajor uint16 = 1
	CurrentVersionMinor uint16 = 0

	// HeaderSize is the fixed on-disk size of Header, in bytes.
	HeaderSize = 512

	indexIVFieldSize    = 32
	masterSaltFieldSize = 32
	bodyHashFieldSize   = 64
	metadataFieldSize   = 128
	reservedFieldSize   = 200
	entryIVSize         = 12 // the live nonce width within the 32-byte index_iv field
	aeadTagSize         = 16
)

// CompressionAlgo identifies the per-entry compression applied before sealing.
type CompressionAlgo uint32

const (
	CompressionNone CompressionAlgo = 0
	CompressionGzip CompressionAlgo = 1
	// CompressionZstd is reserved in the wire format but unsupported by this
	// implementation; see DESIGN.md for the rationale.
	CompressionZstd CompressionAlgo = 2
)

func (c CompressionAlgo) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// EncryptionAlgo identifies the container-wide AEAD suite. The format
// currently mandates exactly one value.
type EncryptionAlgo uint32

const EncryptionAES256GCM EncryptionAlgo = 1

func (e EncryptionAlgo) String() string {
	if e == EncryptionAES256GCM {
		return "AES-256-GCM"
	}
	return "unknown"
}

// Header is the fixed 512-byte prefix of every .ecp file.
type Header struct {
	Magic            [4]byte
	VersionMajor     uint16
	VersionMinor     uint16
	IndexOffset      uint64
	IndexLength      uint64
	IndexIV          [indexIVFieldSize]byte
	MasterSalt       [masterSaltFieldSize]byte
	BodyHash         [bodyHashFieldSize]byte
	CreatedTimestamp uint64
	TotalFiles       uint64
	TotalDataSize    uint64
	CompressionAlgo  CompressionAlgo
	EncryptionAlgo   EncryptionAlgo
	Metadata         [metadataFieldSize]byte
	Reserved         [reservedFieldSize]byte
}

// NewHeader builds a header with the magic and version already populated;
// every other field is filled in once the builder knows the final offsets.
func NewHeader() *Header {
	h := &Header{
		Magic:        MagicBytes,
		VersionMajor: CurrentVersionMajor,
		VersionMinor: CurrentVersionMinor,
	}
	return h
}

// SetMetadata truncates s to the field width on encode; callers don't need
// to pre-truncate.
func (h *Header) SetMetadata(s string) {
	var buf [metadataFieldSize]byte
	copy(buf[:], s)
	h.Metadata = buf
}

// MetadataString returns the metadata field with trailing NULs stripped.
func (h *Header) MetadataString() string {
	return string(bytes.TrimRight(h.Metadata[:], "\x00"))
}

// WriteTo encodes the header to w in the fixed little-endian layout.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	buf := new(bytes.Buffer)
	buf.Grow(HeaderSize)

	fields := []any{
		h.Magic,
		h.VersionMajor,
		h.VersionMinor,
		h.IndexOffset,
		h.IndexLength,
		h.IndexIV,
		h.MasterSalt,
		h.BodyHash,
		h.CreatedTimestamp,
		h.TotalFiles,
		h.TotalDataSize,
		h.CompressionAlgo,
		h.EncryptionAlgo,
		h.Metadata,
		h.Reserved,
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return 0, fmt.Errorf("ecp: encode header: %w", err)
		}
	}

	if buf.Len() != HeaderSize {
		return 0, fmt.Errorf("ecp: encoded header size = %d, want %d", buf.Len(), HeaderSize)
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ReadFrom decodes a header from r. It does not validate field invariants;
// call ValidateHeader for that.
func (h *Header) ReadFrom(r io.Reader) (int64, error) {
	raw := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, raw)
	if err != nil {
		return int64(n), fmt.Errorf("ecp: read header: %w", err)
	}

	reader := bytes.NewReader(raw)
	fields := []any{
		&h.Magic,
		&h.VersionMajor,
		&h.VersionMinor,
		&h.IndexOffset,
		&h.IndexLength,
		&h.IndexIV,
		&h.MasterSalt,
		&h.BodyHash,
		&h.CreatedTimestamp,
		&h.TotalFiles,
		&h.TotalDataSize,
		&h.CompressionAlgo,
		&h.EncryptionAlgo,
		&h.Metadata,
		&h.Reserved,
	}
	for _, f := range fields {
		if err := binary.Read(reader, binary.LittleEndian, f); err != nil {
			return int64(n), fmt.Errorf("ecp: decode header: %w", err)
		}
	}

	return int64(n), nil
}

// ValidateHeader rejects a header that violates any format invariant: bad
// magic, a future major version, an index region that can't follow the
// fixed header, a zero-length index, or mistyped IV/salt widths.
func ValidateHeader(h *Header) error {
	if h.Magic != MagicBytes {
		return newBadHeaderError("magic", fmt.Sprintf("got %q, want %q", h.Magic, MagicBytes))
	}
	if h.VersionMajor > CurrentVersionMajor {
		return newBadHeaderError("version", fmt.Sprintf("unsupported version %d.%d", h.VersionMajor, h.VersionMinor))
	}
	if h.IndexOffset < HeaderSize {
		return newBadHeaderError("index_offset", fmt.Sprintf("%d is before the end of the fixed header", h.IndexOffset))
	}
	if h.IndexLength == 0 {
		return newBadHeaderError("index_length", "index length is zero")
	}
	if isAllZero(h.MasterSalt[:]) {
		return newBadHeaderError("master_salt", "salt is all-zero")
	}
	if h.EncryptionAlgo != EncryptionAES256GCM {
		return newBadHeaderError("encryption_algo", fmt.Sprintf("unsupported algorithm %d", h.EncryptionAlgo))
	}
	return nil
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// FileEntry describes one sealed payload inside the index.
type FileEntry struct {
	ID             string `json:"id"`
	Airport        string `json:"airport"`
	Category       string `json:"category"`
	FileName       string `json:"file_name"`
	Title          string `json:"title"`
	ChartNumber    string `json:"chart_number,omitempty"`
	Runway         string `json:"runway,omitempty"`
	Procedure      string `json:"procedure,omitempty"`
	Offset         uint64 `json:"offset"`
	CompressedSize uint64 `json:"compressed_size"`
	OriginalSize   uint64 `json:"original_size"`
	IV             string `json:"iv"`        // base64
	FileHash       string `json:"file_hash"` // hex SHA-256 of plaintext
	PageCount      int    `json:"page_count,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// PackageInfo carries package-wide metadata mirrored from the header.
type PackageInfo struct {
	Version       string `json:"version"`
	TotalFiles    int    `json:"total_files"`
	TotalDataSize uint64 `json:"total_data_size"`
	CreatedAt     string `json:"created_at"`
}

// AirportSummary aggregates per-airport file counts.
type AirportSummary struct {
	Code      string `json:"code"`
	FileCount int    `json:"file_count"`
}

// StandardCategories is the fixed chart-category taxonomy.
var StandardCategories = []string{
	"ADC", "AOC", "APDC", "GMC", "PATC", "SID", "STAR", "IAC", "FDA",
	"DATABASE_CODING_TABLE", "WAYPOINT_LIST",
}

// PackageIndex is the sealed document describing every entry in a package.
type PackageIndex struct {
	PackageInfo PackageInfo      `json:"package_info"`
	Airports    []AirportSummary `json:"airports"`
	Categories  []string         `json:"categories"`
	Files       []FileEntry      `json:"files"`
}

// GetFileByID returns the entry with the given id, or nil if absent.
func (idx *PackageIndex) GetFileByID(id string) *FileEntry {
	for i := range idx.Files {
		if idx.Files[i].ID == id {
			return &idx.Files[i]
		}
	}
	return nil
}

// IndexAAD is the associated data bound to the sealed index, matching the
// wire constant every builder and reader must agree on.
const IndexAAD = "AIPKG_INDEX_V1"
