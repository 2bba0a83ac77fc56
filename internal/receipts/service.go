// Package receipts runs the upload → detect → persist workflow and reads
// back stored detection records.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/receiptscan/internal/models"
	"github.com/your-org/receiptscan/internal/normalize"
	"github.com/your-org/receiptscan/internal/observability"
)

// ObjectStore holds uploaded images.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	// ObjectURL returns the public URL of key. It must not touch the network.
	ObjectURL(key string) string
}

// TextDetector runs text detection on raw image bytes.
type TextDetector interface {
	DetectText(ctx context.Context, image []byte) ([]models.TextDetection, error)
}

// RecordStore persists detection records keyed by receipt id.
type RecordStore interface {
	// PutItem writes the whole item in a single statement.
	PutItem(ctx context.Context, item models.RecordItem) error
	// Scan returns every stored record, in no particular order.
	Scan(ctx context.Context) ([]models.DetectionRecord, error)
	Get(ctx context.Context, receiptID string) (*models.DetectionRecord, error)
}

// Publisher announces processed receipts. Optional.
type Publisher interface {
	PublishReceipt(ctx context.Context, evt models.ReceiptEvent) error
}

// Upload is one image submitted by a client.
type Upload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Result is what a successful submission returns to the caller. Detections
// are the recognition service's values with ordinary floats.
type Result struct {
	ReceiptID  string
	ImageURL   string
	UploadedAt string
	Detections []models.TextDetection
}

// timestampLayout renders UTC as "+00:00" with microseconds, the format
// already present in stored records.
const timestampLayout = "2006-01-02T15:04:05.000000-07:00"

const uploadPrefix = "uploads/"

// defaultPublishTimeout bounds one event publish, which runs after the
// response has been produced.
const defaultPublishTimeout = 3 * time.Second

type Service struct {
	objects   ObjectStore
	detector  TextDetector
	records   RecordStore
	publisher Publisher

	publishTimeout time.Duration
	inflight       sync.WaitGroup

	now   func() time.Time
	newID func() (uuid.UUID, error)
}

// NewService builds a Service. Any of the three clients may be nil when it is
// not configured; operations that need it then fail with KindUnavailable.
func NewService(objects ObjectStore, detector TextDetector, records RecordStore) *Service {
	return &Service{
		objects:  objects,
		detector: detector,
		records:  records,
		now:      time.Now,
		newID:    uuid.NewRandom,

		publishTimeout: defaultPublishTimeout,
	}
}

// WithPublisher sets the receipt event publisher. Events are published in
// the background and never delay or fail a submission.
func (s *Service) WithPublisher(p Publisher) *Service {
	s.publisher = p
	return s
}

// Drain waits for background event publishes to finish. Call it before
// closing the publisher.
func (s *Service) Drain() {
	s.inflight.Wait()
}

// ObjectKey returns the storage key for an upload. The receipt id prefix
// keeps keys unique even when clients reuse filenames.
func ObjectKey(receiptID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return uploadPrefix + receiptID + "-" + name
}

// Submit stores the image, runs text detection on it and persists the
// result. The first failing step ends the workflow; nothing already written
// is rolled back.
func (s *Service) Submit(ctx context.Context, up Upload) (*Result, error) {
	if s.objects == nil || s.detector == nil || s.records == nil {
		return nil, s.fail("submit", "", unavailable("object store, text detector and record store"))
	}

	id, err := s.newID()
	if err != nil {
		return nil, s.fail("submit", "", &Error{Kind: KindUnexpected, Err: fmt.Errorf("generate receipt id: %w", err)})
	}
	receiptID := id.String()
	key := ObjectKey(receiptID, up.Filename)

	start := time.Now()
	if err := s.objects.PutObject(ctx, key, up.Data, up.ContentType); err != nil {
		return nil, s.fail("submit", receiptID, wrap(KindStorage, err))
	}
	observability.StageDuration.WithLabelValues("upload").Observe(time.Since(start).Seconds())
	imageURL := s.objects.ObjectURL(key)

	start = time.Now()
	detections, err := s.detector.DetectText(ctx, up.Data)
	if err != nil {
		return nil, s.fail("submit", receiptID, wrap(KindRecognition, err), "key", key)
	}
	observability.StageDuration.WithLabelValues("recognize").Observe(time.Since(start).Seconds())
	if detections == nil {
		detections = []models.TextDetection{}
	}

	item := models.RecordItem{
		ReceiptID:  receiptID,
		ImageURL:   imageURL,
		Filename:   up.Filename,
		UploadedAt: s.now().UTC().Format(timestampLayout),
		Detections: normalize.Slice(models.Documents(detections)),
	}

	start = time.Now()
	if err := s.records.PutItem(ctx, item); err != nil {
		return nil, s.fail("submit", receiptID, wrap(KindPersistence, err), "key", key)
	}
	observability.StageDuration.WithLabelValues("persist").Observe(time.Since(start).Seconds())

	observability.Operations.WithLabelValues("submit", "ok").Inc()
	observability.DetectionsStored.Add(float64(len(detections)))
	slog.Info("receipt processed",
		"receipt_id", receiptID,
		"filename", up.Filename,
		"detections", len(detections),
	)

	s.publish(ctx, item, detections)

	return &Result{
		ReceiptID:  receiptID,
		ImageURL:   imageURL,
		UploadedAt: item.UploadedAt,
		Detections: detections,
	}, nil
}

// History returns every stored record. Order is whatever the store yields.
func (s *Service) History(ctx context.Context) ([]models.DetectionRecord, error) {
	if s.records == nil {
		return nil, s.fail("history", "", unavailable("record store"))
	}
	recs, err := s.records.Scan(ctx)
	if err != nil {
		return nil, s.fail("history", "", wrap(KindPersistence, err))
	}
	if recs == nil {
		recs = []models.DetectionRecord{}
	}
	return recs, nil
}

// Get returns one stored record, or ErrNotFound.
func (s *Service) Get(ctx context.Context, receiptID string) (*models.DetectionRecord, error) {
	if s.records == nil {
		return nil, s.fail("get", "", unavailable("record store"))
	}
	rec, err := s.records.Get(ctx, receiptID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail("get", receiptID, wrap(KindPersistence, err))
	}
	return rec, nil
}

func (s *Service) fail(op, receiptID string, e *Error, attrs ...any) error {
	observability.Operations.WithLabelValues(op, string(e.Kind)).Inc()
	args := append([]any{"op", op, "kind", e.Kind, "code", e.Code, "error", e.Err}, attrs...)
	if receiptID != "" {
		args = append(args, "receipt_id", receiptID)
	}
	slog.Error("receipt workflow failed", args...)
	return e
}

func (s *Service) publish(ctx context.Context, item models.RecordItem, detections []models.TextDetection) {
	if s.publisher == nil {
		return
	}
	lines := 0
	for _, d := range detections {
		if d.Type == models.TextTypeLine {
			lines++
		}
	}
	evt := models.ReceiptEvent{
		ID:             uuid.New(),
		Type:           models.EventReceiptProcessed,
		ReceiptID:      item.ReceiptID,
		Filename:       item.Filename,
		ImageURL:       item.ImageURL,
		UploadedAt:     item.UploadedAt,
		DetectionCount: len(detections),
		LineCount:      lines,
	}

	// The request context is cancelled once the handler returns.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if err := s.publisher.PublishReceipt(pubCtx, evt); err != nil {
			slog.Warn("publish receipt event", "receipt_id", item.ReceiptID, "error", err)
		}
	}()
}
