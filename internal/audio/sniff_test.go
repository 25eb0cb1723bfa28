package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func header(prefix []byte) []byte {
	buf := make([]byte, 32)
	copy(buf, prefix)
	return buf
}

func TestSniffKnownSignatures(t *testing.T) {
	cases := []struct {
		name   string
		data   []byte
		format Format
	}{
		{"wav riff", header([]byte("RIFF")), FormatWAV},
		{"mp3 frame sync fb", header([]byte{0xFF, 0xFB, 0x90, 0x00}), FormatMP3},
		{"mp3 frame sync f3", header([]byte{0xFF, 0xF3, 0x90, 0x00}), FormatMP3},
		{"mp3 id3 tag", header([]byte("ID3")), FormatMP3},
		{"ogg capture", header([]byte("OggS")), FormatOGG},
		{"flac marker", header([]byte("fLaC")), FormatFLAC},
		{"m4a ftyp", header([]byte{0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p', 'M', '4', 'A', ' '}), FormatM4A},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			format, err := Sniff(bytes.NewReader(tc.data))
			require.NoError(t, err)
			require.Equal(t, tc.format, format)
		})
	}
}

func TestSniffRejectsTinyFiles(t *testing.T) {
	for _, size := range []int{0, 1, 4, 7} {
		_, err := Sniff(bytes.NewReader(make([]byte, size)))
		require.ErrorIs(t, err, ErrTooSmall, "size %d", size)
	}
}

func TestSniffRejectsUnknownBytes(t *testing.T) {
	inputs := [][]byte{
		header([]byte("this is plain text, not audio")),
		header([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}), // png
		header([]byte{0xFF, 0xD8, 0xFF, 0xE0}),                      // jpeg
		make([]byte, 32),                                            // zeros
	}

	for _, in := range inputs {
		_, err := Sniff(bytes.NewReader(in))
		require.ErrorIs(t, err, ErrUnknownFormat)
	}
}

func TestValidateFileIgnoresDeclaredType(t *testing.T) {
	// A ".mp3" file whose bytes are plain text must be rejected regardless
	// of its name or any declared content type.
	dir := t.TempDir()
	path := filepath.Join(dir, "fake.mp3")
	require.NoError(t, os.WriteFile(path, []byte("just some text pretending to be audio"), 0o644))

	_, err := ValidateFile(path)
	require.ErrorIs(t, err, ErrUnknownFormat)

	// And a real RIFF header is accepted no matter the extension.
	path = filepath.Join(dir, "actually-audio.txt")
	require.NoError(t, os.WriteFile(path, header([]byte("RIFF")), 0o644))

	format, err := ValidateFile(path)
	require.NoError(t, err)
	require.Equal(t, FormatWAV, format)
}

func TestFormatExtensionAndMIME(t *testing.T) {
	require.Equal(t, "wav", FormatWAV.Extension())
	require.Equal(t, "audio/mpeg", FormatMP3.MIMEType())
	require.Equal(t, "audio/wav", FormatWAV.MIMEType())
}
