package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The designer document schema is version-locked. Readers must refuse any
// document tagged with a version they do not know; the version number is the
// only sanctioned mechanism for breaking schema changes.
const (
	DesignerVersion = 1

	// Fixed export resolution (portrait) for all version-1 documents.
	CardWidthPx  = 1536
	CardHeightPx = 2048
)

// FaceID identifies one of the three paintable panels of a card. The set is
// closed: faces are never added or removed at runtime.
type FaceID string

const (
	FaceFront       FaceID = "front"
	FaceInsideLeft  FaceID = "inside_left"
	FaceInsideRight FaceID = "inside_right"
)

// FaceOrder is the canonical processing order for whole-document operations
// such as export. Keeping it fixed makes storage writes deterministic.
var FaceOrder = []FaceID{FaceFront, FaceInsideLeft, FaceInsideRight}

// LayerType discriminates the layer union in persisted JSON.
type LayerType string

const (
	LayerTypeText  LayerType = "text"
	LayerTypeImage LayerType = "image"
)

// TextAlign is the horizontal alignment of a text layer.
type TextAlign string

const (
	AlignLeft   TextAlign = "left"
	AlignCenter TextAlign = "center"
	AlignRight  TextAlign = "right"
)

type (
	// DesignerDocument is the full saved design for one card. It is read and
	// replaced wholesale; there is no partial-field persistence.
	DesignerDocument struct {
		Meta  DocumentMeta    `json:"meta"`
		Faces map[FaceID]Face `json:"faces"`
	}

	DocumentMeta struct {
		Version int `json:"version"`
		Width   int `json:"width"`
		Height  int `json:"height"`
	}

	// Face is one paintable surface. Layer order is the stacking order:
	// index 0 is furthest back, the last index is on top. This ordering is
	// part of the persisted contract.
	Face struct {
		Layers []Layer `json:"layers"`
	}

	// Layer is a closed union over text and image layers. Concrete types are
	// *TextLayer and *ImageLayer; consumers dispatch with a type switch.
	Layer interface {
		LayerID() string
		Kind() LayerType
		Base() BaseLayer
		Clone() Layer

		isLayer()
	}

	// BaseLayer carries the fields common to every layer variant.
	BaseLayer struct {
		ID       string   `json:"id"`
		X        float64  `json:"x"`
		Y        float64  `json:"y"`
		Rotation float64  `json:"rotation"` // degrees
		ScaleX   float64  `json:"scaleX"`   // 1 = natural size
		ScaleY   float64  `json:"scaleY"`
		Opacity  *float64 `json:"opacity,omitempty"` // 0..1, nil means 1
		Locked   bool     `json:"locked,omitempty"`  // suppresses interactive dragging only
	}

	TextLayer struct {
		BaseLayer
		Type       LayerType `json:"type"`
		Text       string    `json:"text"`
		FontFamily string    `json:"fontFamily"`
		FontSize   float64   `json:"fontSize"`
		Color      string    `json:"color"` // hex or rgba()
		Align      TextAlign `json:"align"`

		// Optional typography controls. Kept optional forever: old readers
		// must be able to ignore them without a version bump.
		FontWeight    *int     `json:"fontWeight,omitempty"`
		LineHeight    *float64 `json:"lineHeight,omitempty"`
		LetterSpacing *float64 `json:"letterSpacing,omitempty"`

		ShadowColor   string   `json:"shadowColor,omitempty"`
		ShadowBlur    *float64 `json:"shadowBlur,omitempty"`
		ShadowOffsetX *float64 `json:"shadowOffsetX,omitempty"`
		ShadowOffsetY *float64 `json:"shadowOffsetY,omitempty"`

		StrokeColor string   `json:"strokeColor,omitempty"`
		StrokeWidth *float64 `json:"strokeWidth,omitempty"`
	}

	// ImageLayer references its pixels through a stable storage path,
	// never a signed URL. Signed URLs expire and embed access tokens, so
	// they are resolved at render time and must not reach saved state.
	ImageLayer struct {
		BaseLayer
		Type LayerType `json:"type"`
		Src  string    `json:"src"`

		// Optional sizing overrides; when absent the natural (or cropped)
		// image size is used.
		Width  *float64 `json:"width,omitempty"`
		Height *float64 `json:"height,omitempty"`

		// Optional crop window in source-image pixel coordinates.
		Crop *CropRect `json:"crop,omitempty"`
	}

	CropRect struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
)

func (l *TextLayer) LayerID() string { return l.ID }
func (l *TextLayer) Kind() LayerType { return LayerTypeText }
func (l *TextLayer) Base() BaseLayer { return l.BaseLayer }
func (l *TextLayer) isLayer()        {}

func (l *TextLayer) Clone() Layer {
	c := *l
	c.Opacity = clonePtr(l.Opacity)
	c.FontWeight = clonePtr(l.FontWeight)
	c.LineHeight = clonePtr(l.LineHeight)
	c.LetterSpacing = clonePtr(l.LetterSpacing)
	c.ShadowBlur = clonePtr(l.ShadowBlur)
	c.ShadowOffsetX = clonePtr(l.ShadowOffsetX)
	c.ShadowOffsetY = clonePtr(l.ShadowOffsetY)
	c.StrokeWidth = clonePtr(l.StrokeWidth)
	return &c
}

func (l *ImageLayer) LayerID() string { return l.ID }
func (l *ImageLayer) Kind() LayerType { return LayerTypeImage }
func (l *ImageLayer) Base() BaseLayer { return l.BaseLayer }
func (l *ImageLayer) isLayer()        {}

func (l *ImageLayer) Clone() Layer {
	c := *l
	c.Opacity = clonePtr(l.Opacity)
	c.Width = clonePtr(l.Width)
	c.Height = clonePtr(l.Height)
	if l.Crop != nil {
		crop := *l.Crop
		c.Crop = &crop
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// NewDocument returns an empty version-1 document with all three faces
// present and zero layers.
func NewDocument() *DesignerDocument {
	return &DesignerDocument{
		Meta: DocumentMeta{
			Version: DesignerVersion,
			Width:   CardWidthPx,
			Height:  CardHeightPx,
		},
		Faces: map[FaceID]Face{
			FaceFront:       {Layers: []Layer{}},
			FaceInsideLeft:  {Layers: []Layer{}},
			FaceInsideRight: {Layers: []Layer{}},
		},
	}
}

// UnmarshalJSON decodes the layer union by peeking at the "type" tag of each
// element before committing to a concrete layer struct.
func (f *Face) UnmarshalJSON(data []byte) error {
	var raw struct {
		Layers []json.RawMessage `json:"layers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	layers := make([]Layer, 0, len(raw.Layers))
	for i, msg := range raw.Layers {
		var tag struct {
			Type LayerType `json:"type"`
		}
		if err := json.Unmarshal(msg, &tag); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}

		switch tag.Type {
		case LayerTypeText:
			var l TextLayer
			if err := json.Unmarshal(msg, &l); err != nil {
				return fmt.Errorf("text layer %d: %w", i, err)
			}
			layers = append(layers, &l)
		case LayerTypeImage:
			var l ImageLayer
			if err := json.Unmarshal(msg, &l); err != nil {
				return fmt.Errorf("image layer %d: %w", i, err)
			}
			layers = append(layers, &l)
		default:
			return fmt.Errorf("layer %d: %w: %q", i, ErrInvalidDocument, tag.Type)
		}
	}
	f.Layers = layers
	return nil
}

// ParseDocument decodes and validates a persisted designer document. An
// unrecognized meta.version is a fatal read error, never a best-effort parse.
func ParseDocument(data []byte) (*DesignerDocument, error) {
	var probe struct {
		Meta DocumentMeta `json:"meta"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if probe.Meta.Version != DesignerVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, probe.Meta.Version)
	}

	var doc DesignerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the structural invariants of a document: the fixed meta,
// all three faces present, unique layer ids, and stable image references.
func (d *DesignerDocument) Validate() error {
	if d.Meta.Version != DesignerVersion {
		return fmt.Errorf("%w: version %d", ErrUnsupportedVersion, d.Meta.Version)
	}
	if d.Meta.Width != CardWidthPx || d.Meta.Height != CardHeightPx {
		return fmt.Errorf("%w: canvas %dx%d, want %dx%d",
			ErrInvalidDocument, d.Meta.Width, d.Meta.Height, CardWidthPx, CardHeightPx)
	}
	if len(d.Faces) != len(FaceOrder) {
		return fmt.Errorf("%w: %d faces, want %d", ErrInvalidDocument, len(d.Faces), len(FaceOrder))
	}

	seen := make(map[string]struct{})
	for _, faceID := range FaceOrder {
		face, ok := d.Faces[faceID]
		if !ok {
			return fmt.Errorf("%w: missing face %q", ErrInvalidDocument, faceID)
		}
		for _, layer := range face.Layers {
			id := layer.LayerID()
			if id == "" {
				return fmt.Errorf("%w: layer with empty id on face %q", ErrInvalidDocument, faceID)
			}
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: duplicate layer id %q", ErrInvalidDocument, id)
			}
			seen[id] = struct{}{}

			if img, ok := layer.(*ImageLayer); ok {
				if err := validateStorageRef(img.Src); err != nil {
					return fmt.Errorf("layer %q: %w", id, err)
				}
			}
		}
	}
	return nil
}

// validateStorageRef rejects anything that looks like a fetchable URL.
// Saved designs carry bucket-relative paths only.
func validateStorageRef(src string) error {
	if src == "" {
		return fmt.Errorf("%w: image layer without src", ErrInvalidDocument)
	}
	if strings.Contains(src, "://") || strings.HasPrefix(src, "//") {
		return fmt.Errorf("%w: src must be a storage path, not a URL", ErrInvalidDocument)
	}
	return nil
}

// Clone returns a deep copy of the document. Editing sessions hand out
// copies so that every mutation produces a fresh document value.
func (d *DesignerDocument) Clone() *DesignerDocument {
	faces := make(map[FaceID]Face, len(d.Faces))
	for id, face := range d.Faces {
		layers := make([]Layer, len(face.Layers))
		for i, l := range face.Layers {
			layers[i] = l.Clone()
		}
		faces[id] = Face{Layers: layers}
	}
	return &DesignerDocument{Meta: d.Meta, Faces: faces}
}
