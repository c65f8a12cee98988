package memory

import (
	"context"
	"errors"
	"testing"

	"cardforge/core"
)

func newCard(id, userID string) *core.Card {
	return &core.Card{ID: id, UserID: userID, Title: "t"}
}

func TestGetCardWrongOwnerLooksMissing(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.CreateCard(ctx, newCard("c1", "u1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.GetCard(ctx, "u2", "c1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("wrong owner: got %v, want ErrNotFound", err)
	}
	if _, err := s.GetCard(ctx, "u1", "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing card: got %v, want ErrNotFound", err)
	}
}

func TestDeleteCardRemovesDependents(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.CreateCard(ctx, newCard("c1", "u1"))
	s.SaveDesign(ctx, "c1", core.NewDocument())
	s.UpsertFaceRecord(ctx, &core.FaceRecord{CardID: "c1", FrontPath: "p"})
	s.CreateDelivery(ctx, &core.Delivery{ShareToken: "tok", CardID: "c1"})

	if err := s.DeleteCard(ctx, "u1", "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.GetDesign(ctx, "c1"); !errors.Is(err, core.ErrNotFound) {
		t.Error("design survived card deletion")
	}
	if _, err := s.GetFaceRecord(ctx, "c1"); !errors.Is(err, core.ErrNotFound) {
		t.Error("face record survived card deletion")
	}
	if _, err := s.GetDeliveryByToken(ctx, "tok"); !errors.Is(err, core.ErrNotFound) {
		t.Error("delivery survived card deletion")
	}
}

func TestGetDesignReturnsIndependentCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	doc := core.NewDocument()
	doc.Faces[core.FaceFront] = core.Face{Layers: []core.Layer{
		&core.TextLayer{BaseLayer: core.BaseLayer{ID: "t1"}, Type: core.LayerTypeText, Text: "before"},
	}}
	s.SaveDesign(ctx, "c1", doc)

	got, err := s.GetDesign(ctx, "c1")
	if err != nil {
		t.Fatalf("get design: %v", err)
	}
	got.Faces[core.FaceFront].Layers[0].(*core.TextLayer).Text = "after"

	again, _ := s.GetDesign(ctx, "c1")
	if again.Faces[core.FaceFront].Layers[0].(*core.TextLayer).Text != "before" {
		t.Error("store handed out shared document state")
	}
}

func TestUpsertFaceRecordReplacesWholeRecord(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	s.UpsertFaceRecord(ctx, &core.FaceRecord{
		CardID: "c1", FrontPath: "f1", InsideLeftPath: "l1", InsideRightPath: "r1",
	})
	s.UpsertFaceRecord(ctx, &core.FaceRecord{
		CardID: "c1", FrontPath: "f2", InsideLeftPath: "l2", InsideRightPath: "r2",
	})

	rec, err := s.GetFaceRecord(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.FrontPath != "f2" || rec.InsideLeftPath != "l2" || rec.InsideRightPath != "r2" {
		t.Errorf("record not fully replaced: %+v", rec)
	}
}

func TestCreateDeliveryEnforcesOnePerCard(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.CreateDelivery(ctx, &core.Delivery{ShareToken: "tok1", CardID: "c1"}); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	err := s.CreateDelivery(ctx, &core.Delivery{ShareToken: "tok2", CardID: "c1"})
	if !errors.Is(err, core.ErrDeliveryExists) {
		t.Fatalf("second delivery: got %v, want ErrDeliveryExists", err)
	}

	d, err := s.GetDeliveryByCard(ctx, "c1")
	if err != nil || d.ShareToken != "tok1" {
		t.Errorf("original delivery lost: %+v, %v", d, err)
	}
}

func TestIncrementOpenCount(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.CreateDelivery(ctx, &core.Delivery{ShareToken: "tok", CardID: "c1"})

	for i := 0; i < 3; i++ {
		if err := s.IncrementOpenCount(ctx, "tok"); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	if err := s.IncrementOpenCount(ctx, "unknown"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown token: got %v, want ErrNotFound", err)
	}

	d, _ := s.GetDeliveryByToken(ctx, "tok")
	if d.OpenCount != 3 {
		t.Errorf("open count = %d, want 3", d.OpenCount)
	}
}
