// Package designer holds the editing-session state machine and the layer
// attribute resolver shared by the interactive canvas and the headless
// export pipeline. Both rendering paths must go through the same resolver;
// per-renderer styling logic is what breaks WYSIWYG parity.
package designer

import "cardforge/core"

type (
	// BaseAttrs is the renderer-agnostic transform set common to every
	// layer. Editable is advisory and only meaningful to an interactive
	// surface; headless consumers ignore it.
	BaseAttrs struct {
		ID       string
		X        float64
		Y        float64
		Rotation float64
		ScaleX   float64
		ScaleY   float64
		Opacity  float64
		Editable bool
	}

	TextAttrs struct {
		BaseAttrs
		Text       string
		FontFamily string
		FontSize   float64
		FillColor  string
		Align      core.TextAlign

		LineHeight    float64 // multiplier, 1 when unset
		ShadowColor   string  // empty means no shadow
		ShadowOffsetX float64
		ShadowOffsetY float64
	}

	// ImageAttrs deliberately excludes decoded pixel data. Callers bind
	// pixels separately: a live texture cache on screen, freshly decoded
	// bytes off screen.
	ImageAttrs struct {
		BaseAttrs
		Width  *float64
		Height *float64
		Crop   *core.CropRect
	}
)

// ResolveBaseAttrs maps a layer's common fields to drawing attributes.
// Opacity defaults to 1 when unset.
func ResolveBaseAttrs(layer core.Layer) BaseAttrs {
	b := layer.Base()
	opacity := 1.0
	if b.Opacity != nil {
		opacity = *b.Opacity
	}
	return BaseAttrs{
		ID:       b.ID,
		X:        b.X,
		Y:        b.Y,
		Rotation: b.Rotation,
		ScaleX:   b.ScaleX,
		ScaleY:   b.ScaleY,
		Opacity:  opacity,
		Editable: !b.Locked,
	}
}

// ResolveTextAttrs maps a text layer to drawing attributes.
func ResolveTextAttrs(layer *core.TextLayer) TextAttrs {
	attrs := TextAttrs{
		BaseAttrs:  ResolveBaseAttrs(layer),
		Text:       layer.Text,
		FontFamily: layer.FontFamily,
		FontSize:   layer.FontSize,
		FillColor:  layer.Color,
		Align:      layer.Align,
		LineHeight: 1,
	}
	if layer.LineHeight != nil {
		attrs.LineHeight = *layer.LineHeight
	}
	if layer.ShadowColor != "" {
		attrs.ShadowColor = layer.ShadowColor
		if layer.ShadowOffsetX != nil {
			attrs.ShadowOffsetX = *layer.ShadowOffsetX
		}
		if layer.ShadowOffsetY != nil {
			attrs.ShadowOffsetY = *layer.ShadowOffsetY
		}
	}
	return attrs
}

// ResolveImageAttrs maps an image layer to drawing attributes.
func ResolveImageAttrs(layer *core.ImageLayer) ImageAttrs {
	return ImageAttrs{
		BaseAttrs: ResolveBaseAttrs(layer),
		Width:     layer.Width,
		Height:    layer.Height,
		Crop:      layer.Crop,
	}
}
