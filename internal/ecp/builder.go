package ecp

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cg8-5712/EAIP-Viewer/internal/cryptoutil"
)

// Compression selects whether and how entry payloads are compressed before
// sealing. Level is only meaningful for Gzip (1-9, gzip.BestSpeed..BestCompression).
type Compression struct {
	Algo  CompressionAlgo
	Level int
}

// ProgressFunc reports build progress as (current, total, message). It is
// advisory: a build must succeed when this is nil.
type ProgressFunc func(current, total int, message string)

// BuildOptions configures create_package.
type BuildOptions struct {
	SourceDir   string
	OutputPath  string
	Password    string
	Version     string // eAIP version tag; auto-detected from SourceDir when empty
	Compression Compression
	Progress    ProgressFunc
	Logger      *slog.Logger
}

// BuildStats summarizes a completed build, mirroring the result dict the
// original builder returned.
type BuildStats struct {
	OutputPath       string
	TotalFiles       int
	AirportsCount    int
	OriginalSize     uint64
	FinalSize        uint64
	CompressionRatio float64
	EAIPVersion      string
	CreatedAt        string
}

func monthTag(unixSeconds int64) string {
	return time.Unix(unixSeconds, 0).UTC().Format("2006-01")
}

func calculateCompressionRatio(entries []FileEntry) float64 {
	var originalTotal, compressedTotal uint64
	for _, e := range entries {
		originalTotal += e.OriginalSize
		compressedTotal += e.CompressedSize
	}
	if originalTotal == 0 {
		return 0
	}
	return float64(compressedTotal) / float64(originalTotal)
}

// sealedFile pairs a finished FileEntry with the ciphertext it describes.
type sealedFile struct {
	entry      FileEntry
	ciphertext []byte
}

// processFile reads, hashes, optionally compresses, and AEAD-seals one
// scanned file. associated_data is the entry's own id, as required by §4.4
// step 4.
func processFile(sf scannedFile, masterKey []byte, comp Compression) (sealedFile, error) {
	plaintext, err := os.ReadFile(sf.Path)
	if err != nil {
		return sealedFile{}, fmt.Errorf("ecp: read %s: %w", sf.Path, err)
	}

	hash := cryptoutil.SHA256Hex(plaintext)
	originalSize := uint64(len(plaintext))

	payload := plaintext
	if comp.Algo == CompressionGzip {
		var buf bytes.Buffer
		level := comp.Level
		if level < 1 || level > 9 {
			level = gzip.DefaultCompression
		}
		gw, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return sealedFile{}, fmt.Errorf("ecp: new gzip writer: %w", err)
		}
		if _, err := gw.Write(plaintext); err != nil {
			return sealedFile{}, fmt.Errorf("ecp: gzip compress %s: %w", sf.Path, err)
		}
		if err := gw.Close(); err != nil {
			return sealedFile{}, fmt.Errorf("ecp: gzip close %s: %w", sf.Path, err)
		}
		payload = buf.Bytes()
	}

	iv, err := cryptoutil.GenerateIV()
	if err != nil {
		return sealedFile{}, fmt.Errorf("ecp: generate iv: %w", err)
	}

	id := entryID(sf.Airport, sf.Category, sf.FileName)
	ciphertext, usedIV, err := cryptoutil.Encrypt(payload, masterKey, iv, []byte(id))
	if err != nil {
		return sealedFile{}, fmt.Errorf("ecp: seal %s: %w", sf.Path, err)
	}

	entry := FileEntry{
		ID:             id,
		Airport:        sf.Airport,
		Category:       sf.Category,
		FileName:       sf.FileName,
		Title:          sf.Title,
		ChartNumber:    sf.ChartNumber,
		Runway:         sf.Runway,
		Procedure:      sf.Procedure,
		CompressedSize: uint64(len(payload)),
		OriginalSize:   originalSize,
		IV:             cryptoutil.EncodeBase64(usedIV),
		FileHash:       hash,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}

	return sealedFile{entry: entry, ciphertext: ciphertext}, nil
}

// buildIndexJSON serializes idx with stable field ordering and indentation.
// resolveDataOffsets's fix-up (§4.4 step 6) re-encodes idx once per
// iteration and depends on this being byte-for-byte reproducible across
// re-encodes of the same values: Go's encoding/json always serializes
// struct fields in declaration order, so this holds without any extra
// bookkeeping.
func buildIndexJSON(idx *PackageIndex) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(idx); err != nil {
		return nil, fmt.Errorf("ecp: encode index: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// maxOffsetFixupIterations bounds resolveDataOffsets: each round can only
// grow index_length by the number of entries whose offset gained a decimal
// digit, so the fixed point is reached in a handful of rounds for any
// realistic package size. Hitting the cap means something is oscillating
// and the build should fail loudly rather than write a self-inconsistent
// package.
const maxOffsetFixupIterations = 32

// resolveDataOffsets finds the data region's start offset that is
// consistent with the sealed index length it produces. Adding dataStart to
// every entry's (relative) offset can grow the JSON serialization — an
// offset like 0 is one digit, 1024 is four — which grows index_length,
// which grows dataStart again. The fix-up iterates to a fixed point instead
// of assuming one pass is stable, and serializes the index only once it
// has converged, so the caller seals it exactly once under one fresh IV.
func resolveDataOffsets(index *PackageIndex, baseOffsets []uint64) (indexJSON []byte, dataStart uint64, err error) {
	dataStart = uint64(HeaderSize)
	for i := 0; i < maxOffsetFixupIterations; i++ {
		for j := range index.Files {
			index.Files[j].Offset = baseOffsets[j] + dataStart
		}
		indexJSON, err = buildIndexJSON(index)
		if err != nil {
			return nil, 0, err
		}
		next := uint64(HeaderSize) + uint64(len(indexJSON)) + aeadTagSize
		if next == dataStart {
			return indexJSON, dataStart, nil
		}
		dataStart = next
	}
	return nil, 0, fmt.Errorf("ecp: offset fix-up did not converge after %d iterations", maxOffsetFixupIterations)
}

// CreatePackage scans sourceDir, seals every chart under it, and writes a
// well-formed .ecp file at outputPath. On any failure, no partial file is
// left at outputPath.
func CreatePackage(opts BuildOptions) (*BuildStats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(opts.SourceDir)
	if err != nil || !info.IsDir() {
		return nil, ErrSourceNotDirectory
	}

	if ok, reason := cryptoutil.PasswordStrength(opts.Password, logger); !ok {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, reason)
	}

	version := opts.Version
	if version == "" {
		version = detectEAIPVersion(opts.SourceDir, time.Now().Unix())
		logger.Info("detected eaip version", "version", version)
	}

	salt, err := cryptoutil.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("ecp: generate salt: %w", err)
	}
	masterKey, err := cryptoutil.DeriveMasterKey(opts.Password, salt, cryptoutil.DefaultPBKDF2Iterations, logger)
	if err != nil {
		return nil, fmt.Errorf("ecp: derive master key: %w", err)
	}
	defer zero(masterKey)

	logger.Info("scanning source tree", "source", opts.SourceDir)
	scanned, err := scanSourceTree(opts.SourceDir)
	if err != nil {
		return nil, err
	}
	logger.Info("scan complete", "files", len(scanned))

	airports := extractAirports(scanned)

	tempPath := opts.OutputPath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return nil, fmt.Errorf("ecp: create output dir: %w", err)
	}

	stats, err := sealAndWrite(sealAndWriteParams{
		scanned:     scanned,
		airports:    airports,
		categories:  StandardCategories,
		masterKey:   masterKey,
		masterSalt:  salt,
		version:     version,
		compression: opts.Compression,
		progress:    opts.Progress,
		tempPath:    tempPath,
		outputPath:  opts.OutputPath,
		logger:      logger,
	})
	if err != nil {
		os.Remove(tempPath)
		return nil, err
	}

	return stats, nil
}

type sealAndWriteParams struct {
	scanned     []scannedFile
	airports    []AirportSummary
	categories  []string
	masterKey   []byte
	masterSalt  []byte
	version     string
	compression Compression
	progress    ProgressFunc
	tempPath    string
	outputPath  string
	logger      *slog.Logger
}

// sealAndWrite implements §4.4 steps 4-8: first-pass sealing, the offset
// fix-up to a fixed point, a single index seal, the atomic write, and the
// header patch.
func sealAndWrite(p sealAndWriteParams) (*BuildStats, error) {
	entries := make([]FileEntry, 0, len(p.scanned))
	blocks := make([][]byte, 0, len(p.scanned))
	var runningOffset uint64

	for i, sf := range p.scanned {
		if p.progress != nil {
			p.progress(i+1, len(p.scanned), fmt.Sprintf("sealing %s", sf.FileName))
		}
		sealed, err := processFile(sf, p.masterKey, p.compression)
		if err != nil {
			return nil, err
		}
		sealed.entry.Offset = runningOffset
		runningOffset += uint64(len(sealed.ciphertext))
		entries = append(entries, sealed.entry)
		blocks = append(blocks, sealed.ciphertext)
	}

	now := time.Now()
	pkgInfo := PackageInfo{
		Version:       p.version,
		TotalFiles:    len(entries),
		TotalDataSize: sumOriginalSize(entries),
		CreatedAt:     now.UTC().Format(time.RFC3339),
	}
	index := &PackageIndex{
		PackageInfo: pkgInfo,
		Airports:    p.airports,
		Categories:  p.categories,
		Files:       entries,
	}

	// baseOffsets holds each entry's offset relative to the start of the
	// data region (as computed by the first loop above), before the
	// fix-up below makes them absolute. index.Files shares entries'
	// backing array, so resolveDataOffsets mutates both in place.
	baseOffsets := make([]uint64, len(entries))
	for i, e := range entries {
		baseOffsets[i] = e.Offset
	}

	indexJSON, dataStart, err := resolveDataOffsets(index, baseOffsets)
	if err != nil {
		return nil, err
	}

	indexIV, err := cryptoutil.GenerateIV()
	if err != nil {
		return nil, fmt.Errorf("ecp: generate index iv: %w", err)
	}
	sealedIndex, usedIV, err := cryptoutil.Encrypt(indexJSON, p.masterKey, indexIV, []byte(IndexAAD))
	if err != nil {
		return nil, fmt.Errorf("ecp: seal index: %w", err)
	}
	if dataStart != uint64(HeaderSize)+uint64(len(sealedIndex)) {
		return nil, fmt.Errorf("ecp: resolved data start %d disagrees with sealed index length %d", dataStart, len(sealedIndex))
	}

	f, err := os.Create(p.tempPath)
	if err != nil {
		return nil, fmt.Errorf("ecp: create temp file: %w", err)
	}
	defer f.Close()

	placeholder := NewHeader()
	if _, err := placeholder.WriteTo(f); err != nil {
		return nil, err
	}
	if _, err := f.Write(sealedIndex); err != nil {
		return nil, fmt.Errorf("ecp: write sealed index: %w", err)
	}
	for _, block := range blocks {
		if _, err := f.Write(block); err != nil {
			return nil, fmt.Errorf("ecp: write sealed entry: %w", err)
		}
	}

	bodyHash, err := hashBody(f)
	if err != nil {
		return nil, err
	}

	header := NewHeader()
	header.IndexOffset = HeaderSize
	header.IndexLength = uint64(len(sealedIndex))
	copy(header.IndexIV[:], padIV(usedIV))
	copy(header.MasterSalt[:], p.masterSalt)
	copy(header.BodyHash[:], bodyHash)
	header.CreatedTimestamp = uint64(now.Unix())
	header.TotalFiles = uint64(len(entries))
	header.TotalDataSize = pkgInfo.TotalDataSize
	header.CompressionAlgo = p.compression.Algo
	header.EncryptionAlgo = EncryptionAES256GCM
	header.SetMetadata(p.version)

	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("ecp: seek to patch header: %w", err)
	}
	if _, err := header.WriteTo(f); err != nil {
		return nil, fmt.Errorf("ecp: patch header: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("ecp: close temp file: %w", err)
	}

	if err := os.Rename(p.tempPath, p.outputPath); err != nil {
		return nil, fmt.Errorf("ecp: rename into place: %w", err)
	}

	return &BuildStats{
		OutputPath:       p.outputPath,
		TotalFiles:       len(entries),
		AirportsCount:    len(p.airports),
		OriginalSize:     pkgInfo.TotalDataSize,
		FinalSize:        HeaderSize + uint64(len(sealedIndex)) + runningOffset,
		CompressionRatio: calculateCompressionRatio(entries),
		EAIPVersion:      p.version,
		CreatedAt:        pkgInfo.CreatedAt,
	}, nil
}

func sumOriginalSize(entries []FileEntry) uint64 {
	var total uint64
	for _, e := range entries {
		total += e.OriginalSize
	}
	return total
}

func padIV(iv []byte) []byte {
	buf := make([]byte, indexIVFieldSize)
	copy(buf, iv)
	return buf
}

func hashBody(f *os.File) ([]byte, error) {
	if _, err := f.Seek(HeaderSize, 0); err != nil {
		return nil, fmt.Errorf("ecp: seek to body: %w", err)
	}
	sum, err := cryptoutil.SHA256Reader(f)
	if err != nil {
		return nil, fmt.Errorf("ecp: hash body: %w", err)
	}
	padded := make([]byte, bodyHashFieldSize)
	copy(padded, sum)
	return padded, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
