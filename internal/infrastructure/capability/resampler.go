package capability

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pixelift/backend/internal/config"
	"github.com/pixelift/backend/internal/core/services"
	_ "golang.org/x/image/webp"
)

var filters = map[string]imaging.ResampleFilter{
	"lanczos":    imaging.Lanczos,
	"catmullrom": imaging.CatmullRom,
	"mitchell":   imaging.MitchellNetravali,
	"linear":     imaging.Linear,
	"nearest":    imaging.NearestNeighbor,
}

// Resampler is the built-in super-resolution capability: a high-quality resize
// followed by an optional unsharp pass.
type Resampler struct {
	filter  imaging.ResampleFilter
	sharpen float64
}

func NewResampler(cfg config.UpscaleConfig) (*Resampler, error) {
	name := strings.ToLower(cfg.Filter)
	if name == "" {
		name = "lanczos"
	}
	filter, ok := filters[name]
	if !ok {
		return nil, fmt.Errorf("unknown upscale filter %q", cfg.Filter)
	}
	return &Resampler{filter: filter, sharpen: cfg.Sharpen}, nil
}

func (r *Resampler) SuperResolve(ctx context.Context, data []byte, scale int) ([]byte, error) {
	if scale != 2 && scale != 4 {
		return nil, services.ErrUnsupportedScale
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", services.ErrModel, err)
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", services.ErrModel, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	dst := imaging.Resize(src, bounds.Dx()*scale, bounds.Dy()*scale, r.filter)
	if r.sharpen > 0 {
		dst = imaging.Sharpen(dst, r.sharpen)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return encode(dst, format)
}

// encode keeps the source format where imaging can write it and falls back to PNG.
func encode(img image.Image, format string) ([]byte, error) {
	out, err := imaging.FormatFromExtension(format)
	if err != nil {
		out = imaging.PNG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, out, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", services.ErrModel, err)
	}
	return buf.Bytes(), nil
}
