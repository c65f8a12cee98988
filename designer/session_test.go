package designer

import (
	"testing"

	"cardforge/core"
)

func textLayer(id string) *core.TextLayer {
	return &core.TextLayer{
		BaseLayer: core.BaseLayer{ID: id, ScaleX: 1, ScaleY: 1},
		Type:      core.LayerTypeText,
		Text:      "hello",
	}
}

func imageLayer(id string) *core.ImageLayer {
	return &core.ImageLayer{
		BaseLayer: core.BaseLayer{ID: id, ScaleX: 1, ScaleY: 1},
		Type:      core.LayerTypeImage,
		Src:       "cards/u/c/assets/" + id + ".png",
	}
}

func layerIDs(face core.Face) []string {
	ids := make([]string, len(face.Layers))
	for i, l := range face.Layers {
		ids[i] = l.LayerID()
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSessionStartsEmptyOnFront(t *testing.T) {
	s := NewSession()
	if s.ActiveFace() != core.FaceFront {
		t.Errorf("new session active face = %q, want front", s.ActiveFace())
	}
	if s.SelectedLayerID() != "" {
		t.Errorf("new session has selection %q", s.SelectedLayerID())
	}
	for _, faceID := range core.FaceOrder {
		if n := len(s.Design().Faces[faceID].Layers); n != 0 {
			t.Errorf("face %s starts with %d layers", faceID, n)
		}
	}
}

// Exercises a typical editing walkthrough: add two layers, reorder the
// first one up, then remove it.
func TestSessionEditScenario(t *testing.T) {
	s := NewSession()

	s.AddLayer(textLayer("t1"))
	if s.SelectedLayerID() != "t1" {
		t.Fatalf("added layer not selected, selection = %q", s.SelectedLayerID())
	}

	s.AddLayer(imageLayer("i1"))
	if s.SelectedLayerID() != "i1" {
		t.Fatalf("second added layer not selected")
	}
	if got := layerIDs(s.Design().Faces[core.FaceFront]); !equalIDs(got, []string{"t1", "i1"}) {
		t.Fatalf("stacking order after adds = %v", got)
	}

	s.ReorderLayer("t1", DirectionUp)
	if got := layerIDs(s.Design().Faces[core.FaceFront]); !equalIDs(got, []string{"i1", "t1"}) {
		t.Fatalf("stacking order after reorder = %v", got)
	}

	s.RemoveLayer("t1")
	if got := layerIDs(s.Design().Faces[core.FaceFront]); !equalIDs(got, []string{"i1"}) {
		t.Fatalf("layers after remove = %v", got)
	}
	if s.SelectedLayerID() != "" {
		t.Errorf("selection should be cleared after remove, got %q", s.SelectedLayerID())
	}
}

func TestReorderAtBoundaryLeavesDocumentUntouched(t *testing.T) {
	s := NewSession()
	s.AddLayer(textLayer("t1"))
	s.AddLayer(textLayer("t2"))

	before := s.Design()
	s.ReorderLayer("t2", DirectionUp) // already topmost
	if s.Design() != before {
		t.Error("reordering topmost layer up must not produce a new document")
	}
	s.ReorderLayer("t1", DirectionDown) // already bottommost
	if s.Design() != before {
		t.Error("reordering bottommost layer down must not produce a new document")
	}
	if got := layerIDs(s.Design().Faces[core.FaceFront]); !equalIDs(got, []string{"t1", "t2"}) {
		t.Errorf("order changed at boundary: %v", got)
	}
}

func TestMutationsProduceNewDocumentValues(t *testing.T) {
	s := NewSession()
	s.AddLayer(textLayer("t1"))
	first := s.Design()

	x := 42.0
	s.UpdateLayer("t1", LayerPatch{X: &x})
	second := s.Design()

	if first == second {
		t.Fatal("update did not replace the document value")
	}
	if first.Faces[core.FaceFront].Layers[0].Base().X != 0 {
		t.Error("update mutated the previous document value")
	}
	if second.Faces[core.FaceFront].Layers[0].Base().X != 42 {
		t.Error("update not applied to the new document value")
	}
}

func TestUpdateLayerIgnoresOtherFaces(t *testing.T) {
	s := NewSession()
	s.AddLayer(textLayer("t1"))

	s.SetActiveFace(core.FaceInsideLeft)
	before := s.Design()
	x := 99.0
	s.UpdateLayer("t1", LayerPatch{X: &x}) // t1 lives on the front face
	if s.Design() != before {
		t.Error("cross-face update must be a no-op")
	}

	s.SetActiveFace(core.FaceFront)
	if got := s.Design().Faces[core.FaceFront].Layers[0].Base().X; got != 0 {
		t.Errorf("front layer was modified from another face: x = %v", got)
	}
}

func TestSetActiveFaceClearsSelection(t *testing.T) {
	s := NewSession()
	s.AddLayer(textLayer("t1"))
	if s.SelectedLayerID() != "t1" {
		t.Fatal("precondition: layer selected")
	}

	s.SetActiveFace(core.FaceInsideRight)
	if s.SelectedLayerID() != "" {
		t.Errorf("face switch should clear selection, got %q", s.SelectedLayerID())
	}
}

func TestSetDesignReplacesDocumentAndClearsSelection(t *testing.T) {
	s := NewSession()
	s.AddLayer(textLayer("t1"))

	doc := core.NewDocument()
	doc.Faces[core.FaceInsideLeft] = core.Face{Layers: []core.Layer{imageLayer("i9")}}
	s.SetDesign(doc)

	if s.Design() != doc {
		t.Error("SetDesign did not install the given document")
	}
	if s.SelectedLayerID() != "" {
		t.Errorf("SetDesign should clear selection, got %q", s.SelectedLayerID())
	}
}

func TestUpdateLayerPatchesTextFields(t *testing.T) {
	s := NewSession()
	s.AddLayer(textLayer("t1"))

	text := "goodbye"
	size := 72.0
	s.UpdateLayer("t1", LayerPatch{Text: &text, FontSize: &size})

	got := s.Design().Faces[core.FaceFront].Layers[0].(*core.TextLayer)
	if got.Text != "goodbye" || got.FontSize != 72 {
		t.Errorf("patch not applied: %+v", got)
	}
}

func TestUpdateLayerIgnoresMismatchedVariantFields(t *testing.T) {
	s := NewSession()
	s.AddLayer(imageLayer("i1"))

	text := "should be ignored"
	x := 7.0
	s.UpdateLayer("i1", LayerPatch{Text: &text, X: &x})

	got := s.Design().Faces[core.FaceFront].Layers[0].(*core.ImageLayer)
	if got.X != 7 {
		t.Errorf("base field not applied: %+v", got)
	}
}

func TestRemoveLayerClearsSelectionUnconditionally(t *testing.T) {
	s := NewSession()
	s.AddLayer(textLayer("t1"))
	s.AddLayer(textLayer("t2")) // t2 selected

	s.RemoveLayer("t1")
	if s.SelectedLayerID() != "" {
		t.Errorf("selection should be cleared even when an unselected layer is removed, got %q", s.SelectedLayerID())
	}
}
