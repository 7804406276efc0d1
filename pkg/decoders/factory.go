package decoders

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/drgolem/tomu/pkg/decoders/aiff"
	"github.com/drgolem/tomu/pkg/decoders/flac"
	"github.com/drgolem/tomu/pkg/decoders/mp3"
	"github.com/drgolem/tomu/pkg/decoders/stream"
	"github.com/drgolem/tomu/pkg/decoders/vorbis"
	"github.com/drgolem/tomu/pkg/decoders/wav"
	"github.com/drgolem/tomu/pkg/types"
)

type fileDecoder interface {
	types.Source
	Open(fileName string) error
}

// Extensions lists the file extensions NewDecoder understands.
var Extensions = []string{".mp3", ".flac", ".fla", ".wav", ".ogg", ".oga", ".aif", ".aiff"}

// Supported reports whether path is a tone pseudo path or has a supported
// file extension.
func Supported(path string) bool {
	if strings.HasPrefix(path, stream.TonePrefix) {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// NewDecoder creates and opens the appropriate decoder based on file extension.
// Paths starting with "tone:" open a generated sine wave.
// Returns an opened source ready for use, or an error if the format is unsupported
// or the file cannot be opened.
func NewDecoder(ctx context.Context, fileName string) (types.Source, error) {
	if strings.HasPrefix(fileName, stream.TonePrefix) {
		return stream.NewTone(ctx, fileName)
	}

	ext := strings.ToLower(filepath.Ext(fileName))

	var decoder fileDecoder

	switch ext {
	case ".mp3":
		decoder = mp3.NewDecoder()
	case ".flac", ".fla":
		decoder = flac.NewDecoder()
	case ".wav":
		decoder = wav.NewDecoder()
	case ".ogg", ".oga":
		decoder = vorbis.NewDecoder()
	case ".aif", ".aiff":
		decoder = aiff.NewDecoder()
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", types.ErrUnsupportedFormat, ext, strings.Join(Extensions, ", "))
	}

	if err := decoder.Open(fileName); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fileName, err)
	}

	return decoder, nil
}
