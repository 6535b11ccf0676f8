// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

// Package imaging decodes uploaded images and generates JPEG thumbnails.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	// DefaultThumbWidth is the maximum thumbnail width in pixels.
	DefaultThumbWidth = 400

	// thumbQuality is the JPEG quality for generated thumbnails.
	thumbQuality = 80

	// maxImagePixels caps the number of pixels to prevent memory bombs.
	// 10000x10000 = 100 million pixels, ~400 MB decoded in RGBA.
	maxImagePixels = 100_000_000
)

// Thumbable reports whether a thumbnail can be generated for the given
// MIME type. GIF is excluded to preserve animation; SVG is vector.
func Thumbable(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/webp":
		return true
	}
	return false
}

// Dimensions returns the pixel width and height of an encoded image
// without fully decoding it. Returns (0, 0, nil) for unsupported formats
// so that non-image uploads do not fail the whole request.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if err == image.ErrFormat {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Thumbnail creates a JPEG thumbnail from an image, constrained to
// maxWidth while preserving aspect ratio. Returns nil if the image is
// already smaller than maxWidth.
func Thumbnail(src io.ReadSeeker, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultThumbWidth
	}

	// Decode config first to check dimensions without full decode.
	imgCfg, _, err := image.DecodeConfig(src)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Check for image bombs.
	if int64(imgCfg.Width)*int64(imgCfg.Height) > maxImagePixels {
		return nil, fmt.Errorf("image too large: %dx%d exceeds %d pixels", imgCfg.Width, imgCfg.Height, maxImagePixels)
	}

	// Skip thumbnail if image is already small enough.
	if imgCfg.Width <= maxWidth {
		return nil, nil
	}

	// Seek back to start for full decode.
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}

	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	// Calculate thumbnail dimensions preserving aspect ratio.
	bounds := img.Bounds()
	ratio := float64(maxWidth) / float64(bounds.Dx())
	newWidth := maxWidth
	newHeight := int(float64(bounds.Dy()) * ratio)
	if newHeight < 1 {
		newHeight = 1
	}

	// Resize using CatmullRom (high quality).
	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	return buf.Bytes(), nil
}
