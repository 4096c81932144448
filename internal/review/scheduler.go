// Package review schedules periodic document reviews.
//
// A document opts in by carrying a five-field cron expression. The scheduler
// polls for documents whose next review is due, records a review_due activity
// entry, publishes a stream event, and advances the next review time.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/internal/streaming"
	"github.com/rendis/procdoc/pkg/schema"
)

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = 60 * time.Second

// Scheduler polls the store for due document reviews.
type Scheduler struct {
	store    store.Store
	hub      streaming.EventHub
	parser   cron.Parser
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // document IDs being processed
}

// NewScheduler creates a new Scheduler. hub may be nil.
func NewScheduler(s store.Store, hub streaming.EventHub, logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		store:    s,
		hub:      hub,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		inflight: make(map[string]struct{}),
	}
}

// Start launches the background loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("review scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("review scheduler started", slog.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick processes every document whose review is due and returns how many were handled.
func (s *Scheduler) tick(ctx context.Context) int {
	now := s.now()
	docs, err := s.store.ListDueReviews(ctx, now)
	if err != nil {
		s.logger.Error("failed to list due reviews", slog.String("error", err.Error()))
		return 0
	}

	handled := 0
	for _, doc := range docs {
		if !s.tryAcquire(doc.ID) {
			continue
		}
		if err := s.markDue(ctx, doc, now); err != nil {
			s.logger.Error("failed to process due review",
				slog.String("tenant_id", doc.TenantID),
				slog.String("document_id", doc.ID),
				slog.String("error", err.Error()),
			)
		} else {
			handled++
		}
		s.releaseDocument(doc.ID)
	}
	return handled
}

// markDue records the review notification and advances next_review_at.
func (s *Scheduler) markDue(ctx context.Context, doc *store.Document, now time.Time) error {
	next, err := s.CalculateNextRun(doc.ReviewCron, now)
	if err != nil {
		// Unparseable schedules are cleared.
		s.logger.Warn("disabling invalid review schedule",
			slog.String("document_id", doc.ID),
			slog.String("cron", doc.ReviewCron),
		)
		return s.store.UpdateDocument(ctx, doc.TenantID, doc.ID, store.DocumentUpdate{ClearReview: true})
	}

	payload, _ := json.Marshal(map[string]any{
		"name":           doc.Name,
		"due_at":         doc.NextReviewAt,
		"next_review_at": next,
		"review_cron":    doc.ReviewCron,
	})
	entry := &store.Activity{
		TenantID:   doc.TenantID,
		DocumentID: doc.ID,
		Type:       store.ActivityReviewDue,
		Payload:    payload,
		Timestamp:  now,
	}
	if err := s.store.AppendActivity(ctx, entry); err != nil {
		return fmt.Errorf("append review activity: %w", err)
	}

	if err := s.store.UpdateDocument(ctx, doc.TenantID, doc.ID, store.DocumentUpdate{NextReviewAt: &next}); err != nil {
		return fmt.Errorf("advance next review: %w", err)
	}

	if s.hub != nil {
		_ = s.hub.Publish(ctx, streaming.StreamEvent{
			TenantID:   doc.TenantID,
			DocumentID: doc.ID,
			EventType:  store.ActivityReviewDue,
			Payload:    json.RawMessage(payload),
		})
	}

	s.logger.Info("document review due",
		slog.String("tenant_id", doc.TenantID),
		slog.String("document_id", doc.ID),
		slog.Time("next_review_at", next),
	)
	return nil
}

func (s *Scheduler) tryAcquire(docID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[docID]; ok {
		return false
	}
	s.inflight[docID] = struct{}{}
	return true
}

func (s *Scheduler) releaseDocument(docID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, docID)
}

// ValidateCron reports whether expr is a valid five-field cron expression.
func (s *Scheduler) ValidateCron(expr string) error {
	if _, err := s.parser.Parse(expr); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid review cron %q: %s", expr, err.Error()).
			WithField("review_cron").
			WithCause(err)
	}
	return nil
}

// CalculateNextRun computes the next review time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Plan returns the store update that applies cronExpr to a document.
// An empty expression clears the schedule.
func (s *Scheduler) Plan(cronExpr string) (store.DocumentUpdate, error) {
	update := store.DocumentUpdate{ReviewCron: &cronExpr}
	if cronExpr == "" {
		update.ClearReview = true
		return update, nil
	}
	if err := s.ValidateCron(cronExpr); err != nil {
		return store.DocumentUpdate{}, err
	}
	next, err := s.CalculateNextRun(cronExpr, s.now())
	if err != nil {
		return store.DocumentUpdate{}, err
	}
	update.NextReviewAt = &next
	return update, nil
}

// Stop shuts down the loop and waits for it to exit.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("review scheduler stopped")
	return nil
}

// RecoverMissed processes reviews that fell due while the server was down.
func (s *Scheduler) RecoverMissed(ctx context.Context) error {
	recovered := s.tick(ctx)
	if recovered > 0 {
		s.logger.Info("recovered missed reviews", slog.Int("count", recovered))
	}
	return nil
}
