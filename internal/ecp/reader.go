package ecp

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cg8-5712/EAIP-Viewer/internal/cryptoutil"
)

// Package is an opened .ecp container: the validated header, the decrypted
// index, and a handle on the underlying file for on-demand entry reads.
type Package struct {
	header    *Header
	index     *PackageIndex
	masterKey []byte
	file      *os.File
}

// Open reads and validates the header, derives the master key from
// password and the header's stored salt, and decrypts the index. The
// returned Package owns f for the remainder of its lifetime; call Close
// when done.
func Open(path, password string) (*Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ecp: open %s: %w", path, err)
	}

	pkg, err := openFile(f, password)
	if err != nil {
		f.Close()
		return nil, err
	}
	return pkg, nil
}

func openFile(f *os.File, password string) (*Package, error) {
	header := &Header{}
	if _, err := header.ReadFrom(f); err != nil {
		return nil, err
	}
	if err := ValidateHeader(header); err != nil {
		return nil, err
	}

	masterKey, err := cryptoutil.DeriveMasterKey(password, header.MasterSalt[:], cryptoutil.DefaultPBKDF2Iterations, nil)
	if err != nil {
		return nil, fmt.Errorf("ecp: derive master key: %w", err)
	}

	if _, err := f.Seek(int64(header.IndexOffset), 0); err != nil {
		return nil, fmt.Errorf("ecp: seek to index: %w", err)
	}
	sealedIndex := make([]byte, header.IndexLength)
	if _, err := io.ReadFull(f, sealedIndex); err != nil {
		return nil, fmt.Errorf("ecp: read sealed index: %w", err)
	}

	indexIV := header.IndexIV[:entryIVSize]
	indexJSON, err := cryptoutil.Decrypt(sealedIndex, masterKey, indexIV, []byte(IndexAAD))
	if err != nil {
		zero(masterKey)
		return nil, ErrAuthenticationFailure
	}

	var index PackageIndex
	if err := json.Unmarshal(indexJSON, &index); err != nil {
		zero(masterKey)
		return nil, fmt.Errorf("ecp: parse index: %w", err)
	}

	return &Package{
		header:    header,
		index:     &index,
		masterKey: masterKey,
		file:      f,
	}, nil
}

// List returns every entry in the package's index.
func (p *Package) List() []FileEntry {
	return p.index.Files
}

// PackageInfo returns the package-wide metadata carried in the index.
func (p *Package) PackageInfo() PackageInfo {
	return p.index.PackageInfo
}

// Airports returns the per-airport file count summary.
func (p *Package) Airports() []AirportSummary {
	return p.index.Airports
}

// OpenEntry decrypts and returns the plaintext of the entry with the given
// id, verifying it against the recorded SHA-256.
func (p *Package) OpenEntry(id string) ([]byte, error) {
	entry := p.index.GetFileByID(id)
	if entry == nil {
		return nil, &NotFoundError{EntryID: id}
	}

	if _, err := p.file.Seek(int64(entry.Offset), 0); err != nil {
		return nil, fmt.Errorf("ecp: seek to entry %s: %w", id, err)
	}

	sealed := make([]byte, entry.CompressedSize+aeadTagSize)
	if _, err := io.ReadFull(p.file, sealed); err != nil {
		return nil, fmt.Errorf("ecp: read entry %s: %w", id, err)
	}

	iv, err := cryptoutil.DecodeBase64(entry.IV)
	if err != nil {
		return nil, fmt.Errorf("ecp: decode entry iv: %w", err)
	}

	payload, err := cryptoutil.Decrypt(sealed, p.masterKey, iv, []byte(id))
	if err != nil {
		return nil, ErrAuthenticationFailure
	}

	plaintext := payload
	switch p.header.CompressionAlgo {
	case CompressionNone:
	case CompressionGzip:
		gr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("ecp: decompress entry %s: %w", id, err)
		}
		defer gr.Close()
		plaintext, err = io.ReadAll(gr)
		if err != nil {
			return nil, fmt.Errorf("ecp: decompress entry %s: %w", id, err)
		}
	default:
		return nil, ErrUnsupportedCompression
	}

	if got := cryptoutil.SHA256Hex(plaintext); got != entry.FileHash {
		return nil, &HashMismatchError{EntryID: id, Want: entry.FileHash, Got: got}
	}

	return plaintext, nil
}

// Close releases the master key and the underlying file handle.
func (p *Package) Close() error {
	zero(p.masterKey)
	return p.file.Close()
}
