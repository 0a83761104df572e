// Package qr generates the QR image artifacts that encode public report URLs.
package qr

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	qrcode "github.com/skip2/go-qrcode"
)

// Size is the edge length in pixels of generated QR images.
const Size = 256

// Encode renders a QR PNG for the given URL.
func Encode(url string) ([]byte, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, Size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// WriteFile renders a QR PNG and writes it to path, overwriting any
// existing file. Parent directories are created as needed.
func WriteFile(url, path string) error {
	png, err := Encode(url)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create qr dir: %w", err)
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("write qr: %w", err)
	}
	return nil
}

// DataURL wraps PNG bytes as an inline data URL for the presentation layer.
func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
