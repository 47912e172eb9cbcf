package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/chapterkit/doorman/pkg/domain/interfaces"
	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

const sessionsCollection = "sessions"

type sessionRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.SessionRepository = &sessionRepository{}

func newSessionRepository(client *firestore.Client) *sessionRepository {
	return &sessionRepository{client: client}
}

// sessionDoc is the Firestore persistence model
type sessionDoc struct {
	UserID     string    `firestore:"user_id"`
	Membership string    `firestore:"membership"`
	Step       string    `firestore:"step"`
	Pronouns   []string  `firestore:"pronouns"`
	Interests  []string  `firestore:"interests"`
	CreatedAt  time.Time `firestore:"created_at"`
	UpdatedAt  time.Time `firestore:"updated_at"`
}

func (r *sessionRepository) collection() *firestore.CollectionRef {
	if r.collectionPrefix != "" {
		return r.client.Collection(r.collectionPrefix + "_" + sessionsCollection)
	}
	return r.client.Collection(sessionsCollection)
}

func toKeyStrings(keys []types.RoleKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

func fromKeyStrings(keys []string) []types.RoleKey {
	if keys == nil {
		return nil
	}
	out := make([]types.RoleKey, len(keys))
	for i, k := range keys {
		out[i] = types.RoleKey(k)
	}
	return out
}

func (r *sessionRepository) toDoc(s *model.Session) *sessionDoc {
	return &sessionDoc{
		UserID:     string(s.UserID),
		Membership: string(s.Membership),
		Step:       string(s.Step),
		Pronouns:   toKeyStrings(s.Pronouns),
		Interests:  toKeyStrings(s.Interests),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

func (r *sessionRepository) fromDoc(doc *sessionDoc) *model.Session {
	return &model.Session{
		UserID:     types.UserID(doc.UserID),
		Membership: types.Membership(doc.Membership),
		Step:       model.SelectStep(doc.Step),
		Pronouns:   fromKeyStrings(doc.Pronouns),
		Interests:  fromKeyStrings(doc.Interests),
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

func (r *sessionRepository) Get(ctx context.Context, id types.UserID) (*model.Session, error) {
	snap, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "session not found", goerr.V("userID", id))
		}
		return nil, goerr.Wrap(err, "failed to get session", goerr.V("userID", id))
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode session document", goerr.V("userID", id))
	}
	return r.fromDoc(&doc), nil
}

func (r *sessionRepository) Set(ctx context.Context, session *model.Session) error {
	if err := session.UserID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid session user ID")
	}

	stored := *session
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	if _, err := r.collection().Doc(string(session.UserID)).Set(ctx, r.toDoc(&stored)); err != nil {
		return goerr.Wrap(err, "failed to set session", goerr.V("userID", session.UserID))
	}
	return nil
}

func (r *sessionRepository) Update(ctx context.Context, id types.UserID, patch model.SessionPatch) (*model.Session, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid user ID")
	}

	now := time.Now().UTC()
	session, err := r.Get(ctx, id)
	if err != nil {
		if !goerr.HasTag(err, types.ErrTagNotFound) {
			return nil, err
		}
		session = &model.Session{
			UserID:    id,
			Step:      model.StepPronouns,
			CreatedAt: now,
		}
	}
	session.Apply(patch)
	session.UpdatedAt = now

	if _, err := r.collection().Doc(string(id)).Set(ctx, r.toDoc(session)); err != nil {
		return nil, goerr.Wrap(err, "failed to update session", goerr.V("userID", id))
	}
	return session, nil
}

func (r *sessionRepository) Delete(ctx context.Context, id types.UserID) error {
	if _, err := r.collection().Doc(string(id)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete session", goerr.V("userID", id))
	}
	return nil
}

func (r *sessionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	iter := r.collection().Where("updated_at", "<", cutoff).Documents(ctx)
	defer iter.Stop()

	var removed int
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return removed, goerr.Wrap(err, "failed to iterate stale sessions")
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return removed, goerr.Wrap(err, "failed to delete stale session", goerr.V("doc", snap.Ref.ID))
		}
		removed++
	}
	return removed, nil
}
