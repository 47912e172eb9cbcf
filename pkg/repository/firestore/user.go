package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/chapterkit/doorman/pkg/domain/interfaces"
	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

const usersCollection = "users"

// ErrNotFound is returned when a record does not exist
var ErrNotFound = goerr.New("record not found", goerr.T(types.ErrTagNotFound))

type userRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.UserRepository = &userRepository{}

func newUserRepository(client *firestore.Client) *userRepository {
	return &userRepository{client: client}
}

// userDoc is the Firestore persistence model
type userDoc struct {
	ID         string    `firestore:"id"`
	Email      string    `firestore:"email"`
	Membership string    `firestore:"membership"`
	FlowState  string    `firestore:"flow_state"`
	VerifiedAt time.Time `firestore:"verified_at"`
	LastActive time.Time `firestore:"last_active"`
	CreatedAt  time.Time `firestore:"created_at"`
	UpdatedAt  time.Time `firestore:"updated_at"`
}

func (r *userRepository) collection() *firestore.CollectionRef {
	if r.collectionPrefix != "" {
		return r.client.Collection(r.collectionPrefix + "_" + usersCollection)
	}
	return r.client.Collection(usersCollection)
}

func (r *userRepository) toDoc(u *model.User) *userDoc {
	return &userDoc{
		ID:         string(u.ID),
		Email:      u.Email,
		Membership: string(u.Membership),
		FlowState:  string(u.FlowState),
		VerifiedAt: u.VerifiedAt,
		LastActive: u.LastActive,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func (r *userRepository) fromDoc(doc *userDoc) *model.User {
	return &model.User{
		ID:         types.UserID(doc.ID),
		Email:      doc.Email,
		Membership: types.Membership(doc.Membership),
		FlowState:  types.FlowState(doc.FlowState).Normalize(),
		VerifiedAt: doc.VerifiedAt,
		LastActive: doc.LastActive,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	snap, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("userID", id))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("userID", id))
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode user document", goerr.V("userID", id))
	}
	return r.fromDoc(&doc), nil
}

func (r *userRepository) Put(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user")
	}

	stored := *user
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	if _, err := r.collection().Doc(string(user.ID)).Set(ctx, r.toDoc(&stored)); err != nil {
		return goerr.Wrap(err, "failed to put user", goerr.V("userID", user.ID))
	}
	return nil
}

func (r *userRepository) Touch(ctx context.Context, id types.UserID, now time.Time) (*model.User, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid user ID")
	}

	existing, err := r.Get(ctx, id)
	if err != nil {
		if !goerr.HasTag(err, types.ErrTagNotFound) {
			return nil, err
		}
		existing = &model.User{
			ID:         id,
			Membership: types.MembershipUnknown,
			FlowState:  types.FlowStart,
			CreatedAt:  now,
		}
	}
	existing.LastActive = now
	existing.UpdatedAt = now

	if _, err := r.collection().Doc(string(id)).Set(ctx, r.toDoc(existing)); err != nil {
		return nil, goerr.Wrap(err, "failed to touch user", goerr.V("userID", id))
	}
	return existing, nil
}
