package scan

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/aegis/internal/model"
)

// ErrScanInFlight is returned when a scan is submitted for a document
// that already has one running. Only one scan per document runs at a
// time; concurrent submissions are rejected rather than queued.
var ErrScanInFlight = eris.New("scan: document already has a scan in flight")

// Scheduler serializes scans per document and runs them asynchronously.
type Scheduler struct {
	orch    *Orchestrator
	timeout time.Duration

	mu       sync.Mutex
	inFlight map[string]string // document ID -> scan ID
}

// NewScheduler wraps an orchestrator with per-document admission
// control. timeout caps each background scan end to end; zero means 10
// minutes.
func NewScheduler(orch *Orchestrator, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Scheduler{orch: orch, timeout: timeout, inFlight: make(map[string]string)}
}

// Submit starts a scan of doc in the background and returns its scan ID
// immediately. Returns ErrScanInFlight (with the running scan's ID) if
// the document already has one. The scan runs detached from the
// caller's context.
func (s *Scheduler) Submit(doc *model.Document) (string, error) {
	scanID, err := s.acquire(doc.ID)
	if err != nil {
		return scanID, err
	}

	go func() {
		defer s.release(doc.ID)
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.orch.Run(ctx, doc, scanID); err != nil {
			zap.L().Error("background scan failed",
				zap.String("document_id", doc.ID),
				zap.String("scan_id", scanID),
				zap.Error(err))
		}
	}()
	return scanID, nil
}

// RunSync runs a scan in the caller's goroutine, still holding the
// per-document slot so HTTP and CLI submissions cannot overlap.
func (s *Scheduler) RunSync(ctx context.Context, doc *model.Document) (*model.Scan, error) {
	scanID, err := s.acquire(doc.ID)
	if err != nil {
		return nil, err
	}
	defer s.release(doc.ID)
	return s.orch.Run(ctx, doc, scanID)
}

func (s *Scheduler) acquire(documentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.inFlight[documentID]; ok {
		return id, ErrScanInFlight
	}
	scanID := uuid.New().String()
	s.inFlight[documentID] = scanID
	return scanID, nil
}

func (s *Scheduler) release(documentID string) {
	s.mu.Lock()
	delete(s.inFlight, documentID)
	s.mu.Unlock()
}

// InFlight returns the running scan ID for a document, if any.
func (s *Scheduler) InFlight(documentID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.inFlight[documentID]
	return id, ok
}
