package ecp

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader()
	h.IndexOffset = HeaderSize
	h.IndexLength = 128
	copy(h.IndexIV[:], bytes.Repeat([]byte{0x11}, entryIVSize))
	copy(h.MasterSalt[:], bytes.Repeat([]byte{0x22}, 32))
	copy(h.BodyHash[:], bytes.Repeat([]byte{0x33}, 32))
	h.CreatedTimestamp = 1700000000
	h.TotalFiles = 7
	h.TotalDataSize = 123456
	h.CompressionAlgo = CompressionGzip
	h.EncryptionAlgo = EncryptionAES256GCM
	h.SetMetadata("EAIP2025-07.V1.0")

	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if buf.Len() != HeaderSize {
		t.Fatalf("encoded length = %d, want %d", buf.Len(), HeaderSize)
	}

	var decoded Header
	if _, err := decoded.ReadFrom(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	if decoded != *h {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", decoded, *h)
	}
	if decoded.MetadataString() != "EAIP2025-07.V1.0" {
		t.Errorf("MetadataString() = %q, want %q", decoded.MetadataString(), "EAIP2025-07.V1.0")
	}
}

func TestValidateHeader(t *testing.T) {
	valid := func() *Header {
		h := NewHeader()
		h.IndexOffset = HeaderSize
		h.IndexLength = 64
		h.MasterSalt[0] = 0x01
		h.EncryptionAlgo = EncryptionAES256GCM
		return h
	}

	cases := []struct {
		name    string
		mutate  func(*Header)
		wantErr bool
	}{
		{"valid header", func(h *Header) {}, false},
		{"bad magic", func(h *Header) { h.Magic = [4]byte{'X', 'X', 'X', 'X'} }, true},
		{"future version", func(h *Header) { h.VersionMajor = 2 }, true},
		{"index offset before header", func(h *Header) { h.IndexOffset = 10 }, true},
		{"zero index length", func(h *Header) { h.IndexLength = 0 }, true},
		{"all-zero salt", func(h *Header) { h.MasterSalt = [32]byte{} }, true},
		{"unsupported encryption algo", func(h *Header) { h.EncryptionAlgo = 99 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := valid()
			tc.mutate(h)
			err := ValidateHeader(h)
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestPackageIndexGetFileByID(t *testing.T) {
	idx := &PackageIndex{
		Files: []FileEntry{
			{ID: "zbaa_sid_aaaaaaaa"},
			{ID: "zbaa_star_bbbbbbbb"},
		},
	}

	if got := idx.GetFileByID("zbaa_star_bbbbbbbb"); got == nil || got.ID != "zbaa_star_bbbbbbbb" {
		t.Errorf("GetFileByID found wrong entry: %+v", got)
	}
	if got := idx.GetFileByID("missing"); got != nil {
		t.Errorf("GetFileByID(missing) = %+v, want nil", got)
	}
}
