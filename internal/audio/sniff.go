// Package audio determines the true container format of an uploaded file by
// inspecting its leading bytes. Client-declared MIME types are advisory at
// best and trivially spoofed; the detected format is what gets forwarded to
// the provider and used for derived file extensions.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// Format identifies a supported audio container.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatOGG  Format = "ogg"
	FormatFLAC Format = "flac"
	FormatM4A  Format = "m4a"
)

// headerSize covers the longest signature we check (ftyp at offset 4).
const headerSize = 12

// minFileSize rejects files too small to carry any audio payload.
const minFileSize = 8

// ErrUnknownFormat is returned when no known container signature matches.
var ErrUnknownFormat = errors.New("not a valid audio format")

// ErrTooSmall is returned for inputs under the minimum sniffable size.
var ErrTooSmall = errors.New("file too small to be valid audio")

// Extension returns the filename extension for the format, without the dot.
func (f Format) Extension() string { return string(f) }

// MIMEType returns the canonical content type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	case FormatOGG:
		return "audio/ogg"
	case FormatFLAC:
		return "audio/flac"
	case FormatM4A:
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

// Sniff reads the leading bytes from r and matches them against known
// container signatures in priority order. It consumes at most headerSize
// bytes from r.
func Sniff(r io.Reader) (Format, error) {
	header := make([]byte, headerSize)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read header: %w", err)
	}
	if n < minFileSize {
		return "", ErrTooSmall
	}
	return detect(header[:n])
}

// ValidateFile sniffs the file at path and returns its detected format.
func ValidateFile(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	return Sniff(f)
}

func detect(header []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(header, []byte("RIFF")):
		return FormatWAV, nil
	case len(header) >= 2 && header[0] == 0xFF && (header[1] == 0xFB || header[1] == 0xF3):
		// MPEG frame sync, the two patterns ubiquitous in real mp3 files.
		return FormatMP3, nil
	case bytes.HasPrefix(header, []byte("ID3")):
		return FormatMP3, nil
	case bytes.HasPrefix(header, []byte("OggS")):
		return FormatOGG, nil
	case bytes.HasPrefix(header, []byte("fLaC")):
		return FormatFLAC, nil
	case len(header) >= 8 && bytes.Equal(header[4:8], []byte("ftyp")):
		return FormatM4A, nil
	default:
		return "", ErrUnknownFormat
	}
}
