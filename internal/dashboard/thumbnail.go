package dashboard

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// thumbnailMaxDimension bounds the inlined frame previews. Frames are already
// extraction-sized; this keeps the HTML file small.
const thumbnailMaxDimension = 320

// Thumb is one inlined frame preview for the dashboard.
type Thumb struct {
	Label string
	// DataURI is template.URL so html/template does not strip the data:
	// scheme when it lands in the <img src> attribute.
	DataURI template.URL
}

// Thumbnails downscales up to maxCount frames and inlines them as base64
// JPEG data URIs. Frames are sampled evenly across the session. A frame that
// fails to decode is skipped with a warning; the dashboard renders without it.
func Thumbnails(framePaths []string, maxCount int) []Thumb {
	if maxCount <= 0 || len(framePaths) == 0 {
		return nil
	}

	selected := framePaths
	if len(framePaths) > maxCount {
		step := len(framePaths) / maxCount
		selected = make([]string, 0, maxCount)
		for i := 0; i < maxCount; i++ {
			selected = append(selected, framePaths[i*step])
		}
	}

	thumbs := make([]Thumb, 0, len(selected))
	for _, path := range selected {
		data, err := thumbnailJPEG(path, thumbnailMaxDimension)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping frame preview")
			continue
		}
		thumbs = append(thumbs, Thumb{
			Label:   frameLabel(path),
			DataURI: template.URL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)),
		})
	}

	log.Debug().Int("thumbnails", len(thumbs)).Msg("Frame previews generated")
	return thumbs
}

// thumbnailJPEG decodes a frame and re-encodes it at preview size.
func thumbnailJPEG(path string, maxDimension int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	bounds := img.Bounds()
	width, height := scaledDimensions(bounds.Dx(), bounds.Dy(), maxDimension)

	if width != bounds.Dx() || height != bounds.Dy() {
		resized := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		img = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 72}); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

// scaledDimensions fits width x height inside maxDimension preserving aspect
// ratio. Images already within bounds are left alone.
func scaledDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}
	if width > height {
		return maxDimension, int(float64(height) * float64(maxDimension) / float64(width))
	}
	return int(float64(width) * float64(maxDimension) / float64(height)), maxDimension
}

func frameLabel(path string) string {
	name := filepath.Base(path)
	return name[:len(name)-len(filepath.Ext(name))]
}
