package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatdesk/internal/domain/shared/events"
	"chatdesk/internal/shared/logger"
)

type nopLogger struct{}

func newNopLogger() logger.Interface { return &nopLogger{} }

func (l *nopLogger) Debug(msg string, args ...any)                   {}
func (l *nopLogger) Info(msg string, args ...any)                    {}
func (l *nopLogger) Warn(msg string, args ...any)                    {}
func (l *nopLogger) Error(msg string, args ...any)                   {}
func (l *nopLogger) Fatal(msg string, args ...any)                   {}
func (l *nopLogger) With(args ...any) logger.Interface               { return l }
func (l *nopLogger) Named(name string) logger.Interface              { return l }
func (l *nopLogger) Debugw(msg string, keysAndValues ...interface{}) {}
func (l *nopLogger) Infow(msg string, keysAndValues ...interface{})  {}
func (l *nopLogger) Warnw(msg string, keysAndValues ...interface{})  {}
func (l *nopLogger) Errorw(msg string, keysAndValues ...interface{}) {}
func (l *nopLogger) Fatalw(msg string, keysAndValues ...interface{}) {}

type testEvent struct {
	ID        string    `json:"id"`
	Domain    string    `json:"domain"`
	SendEmail bool      `json:"send_email"`
	At        time.Time `json:"at"`
}

func (e *testEvent) GetAggregateID() string   { return e.ID }
func (e *testEvent) GetEventType() string     { return "test.event" }
func (e *testEvent) GetEventDomain() string   { return e.Domain }
func (e *testEvent) GetCorrelationID() string { return "corr-" + e.ID }
func (e *testEvent) GetOccurredAt() time.Time { return e.At }
func (e *testEvent) ShouldSendEmail() bool    { return e.SendEmail }

var _ events.Notifiable = (*testEvent)(nil)

// memStore keeps committed records; staged records are discarded on rollback by fakeTx.
type memStore struct {
	mu      sync.Mutex
	nextID  uint
	records map[uint]*Record
	staged  []*Record
}

func newMemStore() *memStore {
	return &memStore{records: map[uint]*Record{}}
}

func (s *memStore) Append(ctx context.Context, records []*Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.nextID++
		r.ID = s.nextID
		s.staged = append(s.staged, r)
	}
	return nil
}

func (s *memStore) commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.staged {
		s.records[r.ID] = r
	}
	s.staged = nil
}

func (s *memStore) rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = nil
}

func (s *memStore) MarkPublished(ctx context.Context, id uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		r.PublishedAt = &at
	}
	return nil
}

func (s *memStore) MarkFailed(ctx context.Context, id uint, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		r.Attempts++
		r.LastError = reason
	}
	return nil
}

func (s *memStore) ListUnpublished(ctx context.Context, createdBefore time.Time, limit int) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Record
	for id := uint(1); id <= s.nextID && len(out) < limit; id++ {
		r, ok := s.records[id]
		if ok && r.PublishedAt == nil && r.CreatedAt.Before(createdBefore) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) unpublished() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.PublishedAt == nil {
			n++
		}
	}
	return n
}

type fakeTx struct {
	store *memStore
}

func (f *fakeTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		f.store.rollback()
		return err
	}
	f.store.commit()
	return nil
}

type published struct {
	envelope   Envelope
	routingKey string
}

type fakeBus struct {
	mu        sync.Mutex
	sent      []published
	failTimes int
}

var errBusDown = errors.New("bus unavailable")

func (b *fakeBus) Publish(ctx context.Context, envelope Envelope, routingKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failTimes > 0 {
		b.failTimes--
		return errBusDown
	}
	b.sent = append(b.sent, published{envelope: envelope, routingKey: routingKey})
	return nil
}
