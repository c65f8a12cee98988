package designer

import "cardforge/core"

// Direction moves a layer one step through the stacking order.
type Direction string

const (
	// DirectionUp swaps the layer with its next neighbor, toward the
	// foreground. A no-op for the topmost layer.
	DirectionUp Direction = "up"
	// DirectionDown swaps the layer with its previous neighbor, toward the
	// background. A no-op for the bottommost layer.
	DirectionDown Direction = "down"
)

// Session is the in-memory editing state for one open designer: the active
// document plus transient UI state (active face, selection). It is an
// explicit context object, not process-global state, so parallel sessions
// and tests stay independent.
//
// Every mutating operation replaces the document value, rebuilding only the
// affected face. Renderers that detect change by reference equality redraw
// correctly, and history tooling could be layered on later without a
// redesign. Operations are synchronous and applied in call order; a Session
// is owned by a single goroutine.
type Session struct {
	design          *core.DesignerDocument
	activeFace      core.FaceID
	selectedLayerID string // empty means no selection
}

// NewSession starts a session on an empty document with the front face
// active.
func NewSession() *Session {
	return &Session{
		design:     core.NewDocument(),
		activeFace: core.FaceFront,
	}
}

func (s *Session) Design() *core.DesignerDocument { return s.design }
func (s *Session) ActiveFace() core.FaceID        { return s.activeFace }

// SelectedLayerID returns the current selection, or "" when nothing is
// selected.
func (s *Session) SelectedLayerID() string { return s.selectedLayerID }

// SetDesign replaces the whole document (initial load) and clears the
// selection.
func (s *Session) SetDesign(doc *core.DesignerDocument) {
	s.design = doc
	s.selectedLayerID = ""
}

// SetActiveFace switches the editable face and clears the selection:
// selection is scoped to a face, and must not survive pointing at a layer
// the user can no longer see.
func (s *Session) SetActiveFace(face core.FaceID) {
	s.activeFace = face
	s.selectedLayerID = ""
}

// SelectLayer sets the selection. The id is not validated against the
// active face; callers pass only valid ids or "".
func (s *Session) SelectLayer(id string) {
	s.selectedLayerID = id
}

// AddLayer appends the layer to the active face, making it topmost, and
// selects it.
func (s *Session) AddLayer(layer core.Layer) {
	face := s.design.Faces[s.activeFace]
	layers := make([]core.Layer, len(face.Layers), len(face.Layers)+1)
	copy(layers, face.Layers)
	layers = append(layers, layer)

	s.replaceFace(layers)
	s.selectedLayerID = layer.LayerID()
}

// UpdateLayer merges the patch into the matching layer of the active face.
// A no-op when the id is not found there: edits never cross faces.
func (s *Session) UpdateLayer(id string, patch LayerPatch) {
	face := s.design.Faces[s.activeFace]
	index := indexOfLayer(face.Layers, id)
	if index == -1 {
		return
	}

	layers := make([]core.Layer, len(face.Layers))
	copy(layers, face.Layers)
	layers[index] = patch.applyTo(face.Layers[index])

	s.replaceFace(layers)
}

// RemoveLayer removes the matching layer from the active face and clears
// the selection unconditionally, whether or not the removed layer was
// selected.
func (s *Session) RemoveLayer(id string) {
	face := s.design.Faces[s.activeFace]
	layers := make([]core.Layer, 0, len(face.Layers))
	for _, l := range face.Layers {
		if l.LayerID() != id {
			layers = append(layers, l)
		}
	}

	s.replaceFace(layers)
	s.selectedLayerID = ""
}

// ReorderLayer swaps the layer with its immediate neighbor in the stacking
// order. At either boundary the call is a no-op and the document value is
// left untouched.
func (s *Session) ReorderLayer(id string, direction Direction) {
	face := s.design.Faces[s.activeFace]
	index := indexOfLayer(face.Layers, id)
	if index == -1 {
		return
	}

	var swap int
	switch {
	case direction == DirectionUp && index < len(face.Layers)-1:
		swap = index + 1
	case direction == DirectionDown && index > 0:
		swap = index - 1
	default:
		return
	}

	layers := make([]core.Layer, len(face.Layers))
	copy(layers, face.Layers)
	layers[index], layers[swap] = layers[swap], layers[index]

	s.replaceFace(layers)
}

// replaceFace installs a new document value that shares every face except
// the active one.
func (s *Session) replaceFace(layers []core.Layer) {
	faces := make(map[core.FaceID]core.Face, len(s.design.Faces))
	for id, face := range s.design.Faces {
		faces[id] = face
	}
	faces[s.activeFace] = core.Face{Layers: layers}
	s.design = &core.DesignerDocument{Meta: s.design.Meta, Faces: faces}
}

func indexOfLayer(layers []core.Layer, id string) int {
	for i, l := range layers {
		if l.LayerID() == id {
			return i
		}
	}
	return -1
}

// LayerPatch is a partial layer update. Only non-nil fields are applied,
// and only to the variant they belong to; a text field on an image layer is
// ignored.
type LayerPatch struct {
	X        *float64
	Y        *float64
	Rotation *float64
	ScaleX   *float64
	ScaleY   *float64
	Opacity  *float64
	Locked   *bool

	// Text layer fields.
	Text          *string
	FontFamily    *string
	FontSize      *float64
	Color         *string
	Align         *core.TextAlign
	FontWeight    *int
	LineHeight    *float64
	LetterSpacing *float64
	ShadowColor   *string
	ShadowBlur    *float64
	ShadowOffsetX *float64
	ShadowOffsetY *float64
	StrokeColor   *string
	StrokeWidth   *float64

	// Image layer fields.
	Src    *string
	Width  *float64
	Height *float64
	Crop   *core.CropRect
}

// applyTo returns a fresh layer with the patch merged in. The original is
// never modified.
func (p LayerPatch) applyTo(layer core.Layer) core.Layer {
	out := layer.Clone()

	switch l := out.(type) {
	case *core.TextLayer:
		p.applyBase(&l.BaseLayer)
		setIf(&l.Text, p.Text)
		setIf(&l.FontFamily, p.FontFamily)
		setIf(&l.FontSize, p.FontSize)
		setIf(&l.Color, p.Color)
		setIf(&l.Align, p.Align)
		setPtrIf(&l.FontWeight, p.FontWeight)
		setPtrIf(&l.LineHeight, p.LineHeight)
		setPtrIf(&l.LetterSpacing, p.LetterSpacing)
		setIf(&l.ShadowColor, p.ShadowColor)
		setPtrIf(&l.ShadowBlur, p.ShadowBlur)
		setPtrIf(&l.ShadowOffsetX, p.ShadowOffsetX)
		setPtrIf(&l.ShadowOffsetY, p.ShadowOffsetY)
		setIf(&l.StrokeColor, p.StrokeColor)
		setPtrIf(&l.StrokeWidth, p.StrokeWidth)
	case *core.ImageLayer:
		p.applyBase(&l.BaseLayer)
		setIf(&l.Src, p.Src)
		setPtrIf(&l.Width, p.Width)
		setPtrIf(&l.Height, p.Height)
		if p.Crop != nil {
			crop := *p.Crop
			l.Crop = &crop
		}
	}
	return out
}

func (p LayerPatch) applyBase(b *core.BaseLayer) {
	setIf(&b.X, p.X)
	setIf(&b.Y, p.Y)
	setIf(&b.Rotation, p.Rotation)
	setIf(&b.ScaleX, p.ScaleX)
	setIf(&b.ScaleY, p.ScaleY)
	setPtrIf(&b.Opacity, p.Opacity)
	setIf(&b.Locked, p.Locked)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setPtrIf[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}
