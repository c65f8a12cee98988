package deliveries

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"cardforge/assets"
	assetmemory "cardforge/assets/memory"
	"cardforge/core"
	"cardforge/export"
	"cardforge/handlers/auth"
	"cardforge/middleware"
	"cardforge/render"
	"cardforge/stores"
	"cardforge/stores/memory"
)

type fixture struct {
	store   stores.Store
	storage assets.Storage
	router  *chi.Mux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	storage := assetmemory.NewStorage()

	fonts, err := render.LoadFonts(t.TempDir())
	if err != nil {
		t.Fatalf("load fonts: %v", err)
	}
	t.Cleanup(func() { fonts.Close() })
	exporter := export.NewExporter(storage, store, render.NewFaceRenderer(fonts))

	r := chi.NewRouter()
	r.Post("/cards/{id}/deliver", HandleDeliverCard(store, exporter))
	r.Get("/viewer/{token}", HandleViewCard(store, storage))

	return &fixture{store: store, storage: storage, router: r}
}

func (f *fixture) newCard(t *testing.T, userID string) *core.Card {
	t.Helper()
	card := &core.Card{ID: "card-" + userID, UserID: userID, Title: "Birthday"}
	if err := f.store.CreateCard(context.Background(), card); err != nil {
		t.Fatalf("create card: %v", err)
	}
	if err := f.store.SaveDesign(context.Background(), card.ID, core.NewDocument()); err != nil {
		t.Fatalf("save design: %v", err)
	}
	return card
}

func authed(req *http.Request, subject, name string) *http.Request {
	claims := &auth.AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Login:            subject,
		Name:             name,
	}
	ctx := context.WithValue(req.Context(), middleware.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

type deliverResponse struct {
	ShareToken    string `json:"shareToken"`
	ShareURL      string `json:"shareUrl"`
	RecipientName string `json:"recipientName"`
}

func (f *fixture) deliver(t *testing.T, cardID, subject, body string) deliverResponse {
	t.Helper()
	req := authed(httptest.NewRequest(http.MethodPost, "/cards/"+cardID+"/deliver", strings.NewReader(body)), subject, "Ada Lovelace")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("deliver: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp deliverResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode deliver response: %v", err)
	}
	return resp
}

func TestDeliverMintsTokenAndExportsFaces(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://cards.example.com")
	f := newFixture(t)
	card := f.newCard(t, "u1")

	resp := f.deliver(t, card.ID, "u1", `{"recipientName":"Grace"}`)

	if len(resp.ShareToken) != shareTokenLength {
		t.Errorf("token %q has length %d, want %d", resp.ShareToken, len(resp.ShareToken), shareTokenLength)
	}
	if resp.ShareURL != "https://cards.example.com/c/"+resp.ShareToken {
		t.Errorf("share url = %q", resp.ShareURL)
	}
	if resp.RecipientName != "Grace" {
		t.Errorf("recipient = %q", resp.RecipientName)
	}

	rec, err := f.store.GetFaceRecord(context.Background(), card.ID)
	if err != nil {
		t.Fatalf("deliver did not export faces: %v", err)
	}
	if rec.FrontPath != "cards/u1/"+card.ID+"/faces/front.png" {
		t.Errorf("front path = %q", rec.FrontPath)
	}
}

func TestDeliverTwiceReturnsSameToken(t *testing.T) {
	f := newFixture(t)
	card := f.newCard(t, "u1")

	first := f.deliver(t, card.ID, "u1", "")
	second := f.deliver(t, card.ID, "u1", "")

	if first.ShareToken != second.ShareToken {
		t.Errorf("tokens differ across delivers: %q vs %q", first.ShareToken, second.ShareToken)
	}
	if second.RecipientName != "Friend" {
		t.Errorf("default recipient = %q", second.RecipientName)
	}
}

// ctxCheckingStorage fails uploads once the caller's context is dead,
// the way a real backend would.
type ctxCheckingStorage struct {
	assets.Storage
}

func (s ctxCheckingStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Storage.Upload(ctx, key, body, contentType)
}

func TestDeliverFinishesExportAfterClientDisconnect(t *testing.T) {
	store := memory.NewStore()
	storage := ctxCheckingStorage{assetmemory.NewStorage()}

	fonts, err := render.LoadFonts(t.TempDir())
	if err != nil {
		t.Fatalf("load fonts: %v", err)
	}
	t.Cleanup(func() { fonts.Close() })
	exporter := export.NewExporter(storage, store, render.NewFaceRenderer(fonts))

	r := chi.NewRouter()
	r.Post("/cards/{id}/deliver", HandleDeliverCard(store, exporter))

	card := &core.Card{ID: "c1", UserID: "u1", Title: "Birthday"}
	store.CreateCard(context.Background(), card)
	store.SaveDesign(context.Background(), card.ID, core.NewDocument())

	req := authed(httptest.NewRequest(http.MethodPost, "/cards/c1/deliver", nil), "u1", "")
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(ctx))

	if rec.Code != http.StatusOK {
		t.Fatalf("deliver after disconnect: status %d, body %s", rec.Code, rec.Body.String())
	}
	if _, err := store.GetFaceRecord(context.Background(), card.ID); err != nil {
		t.Errorf("faces not exported after disconnect: %v", err)
	}
}

func TestDeliverRejectsWrongOwner(t *testing.T) {
	f := newFixture(t)
	card := f.newCard(t, "u1")

	req := authed(httptest.NewRequest(http.MethodPost, "/cards/"+card.ID+"/deliver", nil), "u2", "")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("wrong owner deliver status %d, want 404", rec.Code)
	}
}

func TestViewerReturnsCardAndSignedFaces(t *testing.T) {
	f := newFixture(t)
	card := f.newCard(t, "u1")
	resp := f.deliver(t, card.ID, "u1", "")

	req := httptest.NewRequest(http.MethodGet, "/viewer/"+resp.ShareToken, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("viewer status %d, body %s", rec.Code, rec.Body.String())
	}

	var view struct {
		Card struct {
			Title      string `json:"title"`
			SenderName string `json:"senderName"`
		} `json:"card"`
		Faces map[string]string `json:"faces"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode viewer response: %v", err)
	}
	if view.Card.Title != "Birthday" {
		t.Errorf("title = %q", view.Card.Title)
	}
	if view.Card.SenderName != "Ada Lovelace" {
		t.Errorf("sender = %q", view.Card.SenderName)
	}
	for _, faceID := range core.FaceOrder {
		if view.Faces[string(faceID)] == "" {
			t.Errorf("missing face url for %s", faceID)
		}
	}

	delivery, err := f.store.GetDeliveryByToken(context.Background(), resp.ShareToken)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if delivery.OpenCount != 1 {
		t.Errorf("open count = %d, want 1", delivery.OpenCount)
	}
}

func TestViewerUnknownTokenIs404(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/viewer/nope", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404", rec.Code)
	}
}

func TestViewerRequiresExportedFaces(t *testing.T) {
	f := newFixture(t)
	card := f.newCard(t, "u1")

	// A delivery without a face record can happen if storage state is
	// lost; the viewer must treat it as missing.
	delivery := &core.Delivery{ShareToken: "manualtok1", CardID: card.ID, RecipientName: "Friend"}
	if err := f.store.CreateDelivery(context.Background(), delivery); err != nil {
		t.Fatalf("create delivery: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/viewer/manualtok1", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404", rec.Code)
	}
}
