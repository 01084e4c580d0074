package media

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

// Downscale fits images larger than maxDim into a maxDim square and re-encodes
// them as JPEG. Images that cannot be decoded are returned unchanged.
func Downscale(data []byte, mimeType string, maxDim int) ([]byte, string) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		logrus.WithError(err).Debug("[MEDIA] image header not decodable, sending original")
		return data, mimeType
	}
	if cfg.Width <= maxDim && cfg.Height <= maxDim {
		return data, mimeType
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		logrus.WithError(err).Debug("[MEDIA] image not decodable, sending original")
		return data, mimeType
	}
	resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return data, mimeType
	}
	logrus.Debugf("[MEDIA] image downscaled from %dx%d to %dx%d", cfg.Width, cfg.Height, resized.Bounds().Dx(), resized.Bounds().Dy())
	return buf.Bytes(), "image/jpeg"
}
