package gateway

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
)

const defaultQRSize = 256

// QRDataURI renders content as a PNG QR code inlined as a data URI, which the
// kiosk screen can use directly as an image source.
func QRDataURI(content string, size int) (string, error) {
	if size <= 0 {
		size = defaultQRSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("gateway: encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
