// Package imaging converts uploaded images into the encodings accepted by the generation service.
package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/vincent-petithory/dataurl"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/and161185/outfit-studio/internal/errs"
	"github.com/and161185/outfit-studio/internal/model"
)

// MIME types the generation service accepts as-is.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWEBP = "image/webp"
	MIMEHEIC = "image/heic"
	MIMEHEIF = "image/heif"
)

// SupportedMIMETypes lists the pass-through types.
var SupportedMIMETypes = []string{MIMEJPEG, MIMEPNG, MIMEWEBP, MIMEHEIC, MIMEHEIF}

// DefaultJPEGQuality is used when re-encoding unsupported formats.
const DefaultJPEGQuality = 95

// IsSupported reports whether typ can be sent without conversion.
func IsSupported(typ string) bool {
	typ = canonicalType(typ)
	for _, s := range SupportedMIMETypes {
		if s == typ {
			return true
		}
	}
	return false
}

// Normalizer turns RawImage into EncodedImage.
type Normalizer struct {
	quality int
}

// NewNormalizer constructs a Normalizer re-encoding at DefaultJPEGQuality.
func NewNormalizer() *Normalizer { return &Normalizer{quality: DefaultJPEGQuality} }

// Normalize base64-encodes supported images unchanged and converts everything else to JPEG on a white
// background. Failures are reported as *errs.UnsupportedFormatError naming the declared type.
func (n *Normalizer) Normalize(ctx context.Context, raw model.RawImage) (model.EncodedImage, error) {
	if err := ctx.Err(); err != nil {
		return model.EncodedImage{}, err
	}
	if len(raw.Data) == 0 {
		return model.EncodedImage{}, &errs.UnsupportedFormatError{MIMEType: raw.MIMEType, Err: errors.New("empty image")}
	}

	typ := canonicalType(raw.MIMEType)
	if typ == "" || typ == "application/octet-stream" {
		typ = canonicalType(mimetype.Detect(raw.Data).String())
	}
	if IsSupported(typ) {
		return model.EncodedImage{MIMEType: typ, Data: base64.StdEncoding.EncodeToString(raw.Data)}, nil
	}

	out, err := n.flattenToJPEG(raw.Data)
	if err != nil {
		return model.EncodedImage{}, &errs.UnsupportedFormatError{MIMEType: raw.MIMEType, Err: err}
	}
	return model.EncodedImage{MIMEType: MIMEJPEG, Data: base64.StdEncoding.EncodeToString(out)}, nil
}

// flattenToJPEG decodes data, composites it over opaque white and encodes the result as JPEG.
func (n *Normalizer) flattenToJPEG(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, errors.New("image has no pixels")
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: n.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromDataURL parses a "data:<type>;base64,<payload>" string into a RawImage.
func FromDataURL(name, s string) (model.RawImage, error) {
	du, err := dataurl.DecodeString(s)
	if err != nil {
		return model.RawImage{}, errs.Validation("bad data url: %v", err)
	}
	return model.RawImage{Name: name, MIMEType: du.ContentType(), Data: du.Data}, nil
}

// extTypes covers image extensions missing from common mime.types tables.
var extTypes = map[string]string{
	".jpg":  MIMEJPEG,
	".jpeg": MIMEJPEG,
	".png":  MIMEPNG,
	".webp": MIMEWEBP,
	".heic": MIMEHEIC,
	".heif": MIMEHEIF,
	".avif": "image/avif",
}

// TypeByExtension returns the MIME type a file picker would declare for name, or "".
func TypeByExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extTypes[ext]; ok {
		return t
	}
	return canonicalType(mime.TypeByExtension(ext))
}

func canonicalType(typ string) string {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(typ); err == nil {
		return mt
	}
	return strings.ToLower(typ)
}
