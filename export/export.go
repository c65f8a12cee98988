package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	// Image decoders for fetched assets; png registers via image/png above.
	_ "image/jpeg"

	_ "golang.org/x/image/webp"

	"cardforge/assets"
	"cardforge/core"
	"cardforge/render"
)

// signexpiry bounds how long the export run has to fetch each asset.
const signExpiry = 10 * time.Minute

// Exporter renders every face of a card design to a PNG, uploads the
// results, and records their storage paths. It runs headless: the
// output must match what the interactive editor shows.
type Exporter struct {
	storage  assets.Storage
	faces    core.FaceRecordStore
	renderer *render.FaceRenderer
	client   *http.Client
}

func NewExporter(storage assets.Storage, faces core.FaceRecordStore, renderer *render.FaceRenderer) *Exporter {
	return &Exporter{
		storage:  storage,
		faces:    faces,
		renderer: renderer,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Export renders all faces of the document and upserts the card's face
// record. Individual assets that cannot be resolved or decoded are
// skipped so one broken image never blocks the whole card; a failed
// upload aborts the run and leaves the face record untouched.
func (e *Exporter) Export(ctx context.Context, userID, cardID string, doc *core.DesignerDocument) (*core.FaceRecord, error) {
	log := logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"card_id": cardID,
	})

	images := e.fetchImages(ctx, doc, log)

	paths := make(map[core.FaceID]string, len(core.FaceOrder))
	for _, faceID := range core.FaceOrder {
		face := doc.Faces[faceID]
		img, err := e.renderer.Render(face, images)
		if err != nil {
			return nil, fmt.Errorf("failed to render face %s: %w", faceID, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode face %s: %w", faceID, err)
		}

		key := assets.FacePath(userID, cardID, string(faceID))
		if err := e.storage.Upload(ctx, key, &buf, "image/png"); err != nil {
			return nil, fmt.Errorf("failed to upload face %s: %w", faceID, err)
		}
		paths[faceID] = key
		log.WithFields(logrus.Fields{"face": faceID, "key": key}).Debug("Face uploaded")
	}

	record := &core.FaceRecord{
		CardID:          cardID,
		FrontPath:       paths[core.FaceFront],
		InsideLeftPath:  paths[core.FaceInsideLeft],
		InsideRightPath: paths[core.FaceInsideRight],
	}
	if err := e.faces.UpsertFaceRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save face record: %w", err)
	}

	log.Info("Card export completed")
	return record, nil
}

// fetchImages resolves every distinct image source in the document to a
// decoded image. Each source is signed and fetched exactly once, no
// matter how many layers reference it.
func (e *Exporter) fetchImages(ctx context.Context, doc *core.DesignerDocument, log *logrus.Entry) map[string]image.Image {
	srcs := make([]string, 0)
	seen := make(map[string]bool)
	for _, faceID := range core.FaceOrder {
		for _, layer := range doc.Faces[faceID].Layers {
			img, ok := layer.(*core.ImageLayer)
			if !ok || img.Src == "" || seen[img.Src] {
				continue
			}
			seen[img.Src] = true
			srcs = append(srcs, img.Src)
		}
	}

	images := make(map[string]image.Image, len(srcs))
	for _, src := range srcs {
		img, err := e.fetchImage(ctx, src)
		if err != nil {
			log.WithError(err).WithField("src", src).Warn("Skipping unresolvable image asset")
			continue
		}
		images[src] = img
	}
	return images
}

func (e *Exporter) fetchImage(ctx context.Context, src string) (image.Image, error) {
	url, err := e.storage.SignedURL(ctx, src, signExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign asset: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching asset", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode asset: %w", err)
	}
	return img, nil
}
