// Package qrcode renders pairing codes handed out by the messaging client.
package qrcode

import (
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrEmptyContent is returned when content is empty or whitespace.
	ErrEmptyContent = errors.New("content cannot be empty")
	// ErrGenerate wraps failures from the QR encoder.
	ErrGenerate = errors.New("failed to generate QR code")
)

const defaultSize = 256

// PNG encodes content as a PNG image of size x size pixels.
func PNG(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = defaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrGenerate, err)
	}
	return png, nil
}

// Terminal renders content with half-block characters for printing to a terminal.
func Terminal(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	qr, err := skipqrcode.New(content, skipqrcode.Low)
	if err != nil {
		return "", errors.Join(ErrGenerate, err)
	}
	return qr.ToSmallString(false), nil
}
