package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"

	"github.com/chapterkit/doorman/pkg/domain/interfaces"
	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

const auditCollection = "audit_events"

type auditRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.AuditRepository = &auditRepository{}

func newAuditRepository(client *firestore.Client) *auditRepository {
	return &auditRepository{client: client}
}

// auditDoc is the Firestore persistence model
type auditDoc struct {
	ID        string    `firestore:"id"`
	UserID    string    `firestore:"user_id"`
	Type      string    `firestore:"type"`
	Details   string    `firestore:"details"`
	GuildID   string    `firestore:"guild_id"`
	Timestamp time.Time `firestore:"timestamp"`
}

func (r *auditRepository) collection() *firestore.CollectionRef {
	if r.collectionPrefix != "" {
		return r.client.Collection(r.collectionPrefix + "_" + auditCollection)
	}
	return r.client.Collection(auditCollection)
}

func (r *auditRepository) toDoc(e *model.AuditEvent) *auditDoc {
	return &auditDoc{
		ID:        string(e.ID),
		UserID:    string(e.UserID),
		Type:      string(e.Type),
		Details:   e.Details,
		GuildID:   e.GuildID,
		Timestamp: e.Timestamp,
	}
}

func (r *auditRepository) fromDoc(doc *auditDoc) *model.AuditEvent {
	return &model.AuditEvent{
		ID:        types.EventID(doc.ID),
		UserID:    types.UserID(doc.UserID),
		Type:      types.AuditType(doc.Type),
		Details:   doc.Details,
		GuildID:   doc.GuildID,
		Timestamp: doc.Timestamp,
	}
}

func (r *auditRepository) Append(ctx context.Context, event *model.AuditEvent) (*model.AuditEvent, error) {
	if err := event.UserID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid audit event user ID")
	}
	if !event.Type.IsValid() {
		return nil, goerr.New("invalid audit event type", goerr.V("type", event.Type))
	}

	stored := *event
	if stored.ID == "" {
		stored.ID = model.NewEventID()
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}

	if _, err := r.collection().Doc(string(stored.ID)).Create(ctx, r.toDoc(&stored)); err != nil {
		return nil, goerr.Wrap(err, "failed to append audit event", goerr.V("eventID", stored.ID))
	}
	return &stored, nil
}

func (r *auditRepository) ListByUser(ctx context.Context, id types.UserID, limit int) ([]*model.AuditEvent, error) {
	q := r.collection().
		Where("user_id", "==", string(id)).
		OrderBy("timestamp", firestore.Desc)
	return r.list(ctx, q, limit)
}

func (r *auditRepository) ListByType(ctx context.Context, eventType types.AuditType, limit int) ([]*model.AuditEvent, error) {
	q := r.collection().
		Where("type", "==", string(eventType)).
		OrderBy("timestamp", firestore.Desc)
	return r.list(ctx, q, limit)
}

func (r *auditRepository) list(ctx context.Context, q firestore.Query, limit int) ([]*model.AuditEvent, error) {
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	events := []*model.AuditEvent{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate audit events")
		}

		var doc auditDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode audit event", goerr.V("doc", snap.Ref.ID))
		}
		events = append(events, r.fromDoc(&doc))
	}
	return events, nil
}
