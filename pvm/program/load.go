package program

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/colorfulnotion/regcache/common"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// ReadBlob reads a program blob from path. Files ending in .zst or .xz are
// decompressed; .hex files, or files holding only a 0x prefixed hex string,
// are hex decoded.
func ReadBlob(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeBlob(filepath.Base(path), raw)
}

// DecodeBlob applies the decoding ReadBlob would choose for a file called name.
func DecodeBlob(name string, raw []byte) ([]byte, error) {
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zst", ".zstd":
		raw, err = decompressZstd(raw)
		name = strings.TrimSuffix(name, filepath.Ext(name))
	case ".xz":
		raw, err = decompressXz(raw)
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", name, err)
	}
	text := strings.TrimSpace(string(raw))
	if strings.EqualFold(filepath.Ext(name), ".hex") || (strings.HasPrefix(text, "0x") && common.IsHex(text)) {
		if !common.IsHex(text) {
			return nil, fmt.Errorf("%s: invalid hex", name)
		}
		return common.FromHex(text), nil
	}
	return raw, nil
}

func decompressZstd(raw []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(raw, nil)
}

func decompressXz(raw []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// Load reads and decodes a program file.
func Load(path string) (*Program, error) {
	blob, err := ReadBlob(path)
	if err != nil {
		return nil, err
	}
	p, err := DecodeCorePart(blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// CompressZstd and CompressXz produce files ReadBlob accepts.
func CompressZstd(raw []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func CompressXz(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
