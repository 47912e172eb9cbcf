package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/chapterkit/doorman/pkg/domain/interfaces"
	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

// defaultAuditWindow bounds the in-memory audit log; the oldest events are
// dropped past this size.
const defaultAuditWindow = 1000

type auditRepository struct {
	mu     sync.RWMutex
	events []*model.AuditEvent
	window int
}

var _ interfaces.AuditRepository = &auditRepository{}

func newAuditRepository() *auditRepository {
	return &auditRepository{
		window: defaultAuditWindow,
	}
}

func copyEvent(e *model.AuditEvent) *model.AuditEvent {
	copied := *e
	return &copied
}

func (r *auditRepository) Append(ctx context.Context, event *model.AuditEvent) (*model.AuditEvent, error) {
	if err := event.UserID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid audit event user ID")
	}
	if !event.Type.IsValid() {
		return nil, goerr.New("invalid audit event type", goerr.V("type", event.Type))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyEvent(event)
	if stored.ID == "" {
		stored.ID = model.NewEventID()
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}

	r.events = append(r.events, stored)
	if len(r.events) > r.window {
		r.events = r.events[len(r.events)-r.window:]
	}

	return copyEvent(stored), nil
}

func (r *auditRepository) ListByUser(ctx context.Context, id types.UserID, limit int) ([]*model.AuditEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.filter(limit, func(e *model.AuditEvent) bool {
		return e.UserID == id
	}), nil
}

func (r *auditRepository) ListByType(ctx context.Context, eventType types.AuditType, limit int) ([]*model.AuditEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.filter(limit, func(e *model.AuditEvent) bool {
		return e.Type == eventType
	}), nil
}

// filter walks newest-first under the caller's read lock
func (r *auditRepository) filter(limit int, match func(*model.AuditEvent) bool) []*model.AuditEvent {
	results := []*model.AuditEvent{}
	for i := len(r.events) - 1; i >= 0; i-- {
		if limit > 0 && len(results) >= limit {
			break
		}
		if match(r.events[i]) {
			results = append(results, copyEvent(r.events[i]))
		}
	}
	return results
}
