package encode

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/gen2brain/avif"
)

type Format string

const (
	FormatAVIF Format = "avif"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

const DefaultQuality = 80

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatAVIF, FormatJPEG, FormatPNG:
		return f, nil
	case "jpg":
		return FormatJPEG, nil
	case "":
		return FormatAVIF, nil
	}
	return "", fmt.Errorf("unknown output format: %s", s)
}

func (f Format) Extension() string {
	return string(f)
}

func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	default:
		return "image/avif"
	}
}

type EncodingError struct {
	Format Format
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to encode %s: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to encode %s: %s", e.Format, e.Reason)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

type Encoder interface {
	Encode(img image.Image) ([]byte, error)
	Format() Format
}

type encoder struct {
	format  Format
	quality int
}

func New(format Format, quality int) (Encoder, error) {
	f, err := ParseFormat(string(format))
	if err != nil {
		return nil, err
	}
	if quality <= 0 || quality > 100 {
		return nil, fmt.Errorf("quality must be within 1-100: %d", quality)
	}
	return &encoder{
		format:  f,
		quality: quality,
	}, nil
}

func (e *encoder) Format() Format {
	return e.format
}

func (e *encoder) Encode(img image.Image) ([]byte, error) {
	if reason := validate(img); reason != "" {
		return nil, &EncodingError{Format: e.format, Reason: reason}
	}

	var buffer bytes.Buffer
	var err error
	switch e.format {
	case FormatJPEG:
		err = jpeg.Encode(&buffer, img, &jpeg.Options{Quality: e.quality})
	case FormatPNG:
		err = png.Encode(&buffer, img)
	default:
		err = avif.Encode(&buffer, img, avif.Options{
			Quality:           e.quality,
			QualityAlpha:      e.quality,
			Speed:             6,
			ChromaSubsampling: image.YCbCrSubsampleRatio420,
		})
	}
	if err != nil {
		return nil, &EncodingError{Format: e.format, Reason: "encoder failed", Err: err}
	}

	return buffer.Bytes(), nil
}

func validate(img image.Image) string {
	if img == nil {
		return "missing image data"
	}
	b := img.Bounds()
	if b.Empty() {
		return fmt.Sprintf("zero dimensions %dx%d", b.Dx(), b.Dy())
	}

	var pix, stride int
	switch m := img.(type) {
	case *image.NRGBA:
		pix, stride = len(m.Pix), m.Stride
	case *image.RGBA:
		pix, stride = len(m.Pix), m.Stride
	default:
		return ""
	}
	if stride < 4*b.Dx() || pix < stride*(b.Dy()-1)+4*b.Dx() {
		return "missing channel data"
	}
	return ""
}
