// Package render reproduces a card face as a bitmap, off screen. It is the
// headless half of the WYSIWYG pair: it consumes the same resolved layer
// attributes as the interactive canvas and paints layers strictly in
// stacking order onto an opaque white surface.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"cardforge/core"
	"cardforge/designer"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// FaceRenderer rasterizes faces at the fixed canvas resolution. Text runs
// are shaped and rasterized with gg, then every layer bitmap is composited
// through one affine transform path so position, rotation and scale behave
// identically for text and images.
type FaceRenderer struct {
	fonts  *FontLibrary
	width  int
	height int
}

func NewFaceRenderer(fonts *FontLibrary) *FaceRenderer {
	return &FaceRenderer{
		fonts:  fonts,
		width:  core.CardWidthPx,
		height: core.CardHeightPx,
	}
}

// Render paints the face onto a fresh surface and returns it. images maps
// an image layer's storage path to its decoded pixels; a layer whose path
// is absent is skipped, it never aborts the face.
//
// The surface starts opaque white so layers leaving transparent regions do
// not show through when the bitmap is composited later.
func (r *FaceRenderer) Render(face core.Face, images map[string]image.Image) (*image.RGBA, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	// Stacking order is the array order: index 0 paints first.
	for _, layer := range face.Layers {
		switch l := layer.(type) {
		case *core.TextLayer:
			r.paintText(canvas, l)
		case *core.ImageLayer:
			r.paintImage(canvas, l, images[l.Src])
		default:
			return nil, fmt.Errorf("unknown layer kind %q", layer.Kind())
		}
	}
	return canvas, nil
}

// paintText rasterizes the text block at natural size with gg, then
// composites it under the layer transform. Line alignment follows the
// widest line, the same box the interactive canvas aligns within.
func (r *FaceRenderer) paintText(canvas *image.RGBA, layer *core.TextLayer) {
	attrs := designer.ResolveTextAttrs(layer)
	if attrs.Text == "" {
		return
	}

	face := r.fonts.Face(attrs.FontFamily, attrs.FontSize)
	if face == nil {
		logrus.WithField("layer_id", attrs.ID).Warn("No font available, skipping text layer")
		return
	}

	lines := strings.Split(attrs.Text, "\n")
	lineHeight := attrs.FontSize * attrs.LineHeight

	widths := make([]float64, len(lines))
	var maxWidth float64
	for i, line := range lines {
		w, _ := text.Measure(line, face)
		widths[i] = w
		maxWidth = math.Max(maxWidth, w)
	}

	// Room below the last baseline for descenders, plus whatever a shadow
	// offset pushes past the block edge on either side. A negative offset
	// pads before the text instead, shifting the draw origin with it.
	padX := math.Max(0, -attrs.ShadowOffsetX)
	padY := math.Max(0, -attrs.ShadowOffsetY)
	blockW := int(math.Ceil(maxWidth + padX + math.Max(0, attrs.ShadowOffsetX) + 2))
	blockH := int(math.Ceil(lineHeight*float64(len(lines)-1) + attrs.FontSize*1.4 +
		padY + math.Max(0, attrs.ShadowOffsetY)))
	if blockW <= 0 || blockH <= 0 {
		return
	}

	dc := gg.NewContext(blockW, blockH)
	defer dc.Close()
	dc.SetFont(face)

	for i, line := range lines {
		baseline := lineHeight*float64(i) + attrs.FontSize
		var offX float64
		switch attrs.Align {
		case core.AlignCenter:
			offX = (maxWidth - widths[i]) / 2
		case core.AlignRight:
			offX = maxWidth - widths[i]
		}

		// Opacity is baked into the text colors, so the composite below
		// runs at full strength.
		if attrs.ShadowColor != "" {
			dc.SetColor(withAlpha(parseColor(attrs.ShadowColor), attrs.Opacity))
			dc.DrawString(line, padX+offX+attrs.ShadowOffsetX, padY+baseline+attrs.ShadowOffsetY)
		}
		dc.SetColor(withAlpha(parseColor(attrs.FillColor), attrs.Opacity))
		dc.DrawString(line, padX+offX, padY+baseline)
	}

	// The pad moved the text inside the block; move the block's anchor the
	// opposite way, through the layer transform, so the text itself stays
	// at (x, y).
	if padX > 0 || padY > 0 {
		sin, cos := math.Sincos(attrs.Rotation * math.Pi / 180)
		attrs.X -= attrs.ScaleX*cos*padX - attrs.ScaleY*sin*padY
		attrs.Y -= attrs.ScaleX*sin*padX + attrs.ScaleY*cos*padY
	}

	block := dc.Image()
	compositeLayer(canvas, block, block.Bounds(), attrs.BaseAttrs, 0, 0, 1)
}

// paintImage composites decoded pixels under the layer transform, honoring
// the optional crop window and size overrides.
func (r *FaceRenderer) paintImage(canvas *image.RGBA, layer *core.ImageLayer, src image.Image) {
	if src == nil {
		logrus.WithFields(logrus.Fields{
			"layer_id": layer.ID,
			"src":      layer.Src,
		}).Warn("Image pixels unavailable, skipping layer")
		return
	}

	attrs := designer.ResolveImageAttrs(layer)

	sr := src.Bounds()
	if attrs.Crop != nil {
		crop := image.Rect(
			int(attrs.Crop.X),
			int(attrs.Crop.Y),
			int(attrs.Crop.X+attrs.Crop.Width),
			int(attrs.Crop.Y+attrs.Crop.Height),
		)
		sr = sr.Intersect(crop.Add(src.Bounds().Min))
		if sr.Empty() {
			return
		}
	}

	var dstW, dstH float64
	if attrs.Width != nil {
		dstW = *attrs.Width
	}
	if attrs.Height != nil {
		dstH = *attrs.Height
	}

	compositeLayer(canvas, src, sr, attrs.BaseAttrs, dstW, dstH, attrs.Opacity)
}

// compositeLayer draws src's sr region onto dst under the layer transform:
// translate to (x, y), rotate, scale, and stretch the source region to the
// destination size (zero means natural size). One code path for every layer
// kind keeps headless output aligned with the interactive canvas.
func compositeLayer(dst *image.RGBA, src image.Image, sr image.Rectangle, base designer.BaseAttrs, dstW, dstH, opacity float64) {
	srcW := float64(sr.Dx())
	srcH := float64(sr.Dy())
	if srcW == 0 || srcH == 0 {
		return
	}
	if dstW == 0 {
		dstW = srcW
	}
	if dstH == 0 {
		dstH = srcH
	}

	kx := base.ScaleX * dstW / srcW
	ky := base.ScaleY * dstH / srcH
	if kx == 0 || ky == 0 {
		return
	}

	theta := base.Rotation * math.Pi / 180
	sin, cos := math.Sincos(theta)

	// M = translate(x, y) * rotate(theta) * scale(kx, ky) * translate(-sr.Min)
	a, b := kx*cos, -ky*sin
	d, e := kx*sin, ky*cos
	m := f64.Aff3{
		a, b, base.X - a*float64(sr.Min.X) - b*float64(sr.Min.Y),
		d, e, base.Y - d*float64(sr.Min.X) - e*float64(sr.Min.Y),
	}

	var opts *draw.Options
	if opacity < 1 {
		alpha := uint8(math.Round(clamp01(opacity) * 255))
		opts = &draw.Options{SrcMask: image.NewUniform(color.Alpha{A: alpha})}
	}

	draw.BiLinear.Transform(dst, m, src, sr, draw.Over, opts)
}

func withAlpha(c gg.RGBA, opacity float64) color.Color {
	c.A *= clamp01(opacity)
	return c.Color()
}
