// Package qr builds referral links and their QR images.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const imageSize = 400

// Link formats the referral URL for a partner code.
func Link(baseURL, partnercode string) string {
	return fmt.Sprintf("%s?ref=%s", baseURL, partnercode)
}

// Image renders the referral link as a PNG. High error correction so the
// code survives being photographed off a phone screen.
func Image(baseURL, partnercode string) ([]byte, error) {
	png, err := qrcode.Encode(Link(baseURL, partnercode), qrcode.High, imageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return png, nil
}
