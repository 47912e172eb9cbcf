package usecase

import (
	"time"

	"github.com/chapterkit/doorman/pkg/domain/interfaces"
	"github.com/chapterkit/doorman/pkg/domain/model/config"
	"github.com/chapterkit/doorman/pkg/service/audit"
	"github.com/chapterkit/doorman/pkg/service/rolesync"
)

// UseCases bundles the onboarding business logic
type UseCases struct {
	repo     interfaces.Repository
	gateway  interfaces.ChatGateway
	verifier interfaces.MembershipVerifier
	engine   *rolesync.Engine
	recorder *audit.Recorder
	guild    *config.GuildConfig
	clock    func() time.Time

	Onboard *OnboardUseCase
	Admin   *AdminUseCase
}

// Option is a functional option for UseCases
type Option func(*UseCases)

// WithClock injects the clock for tests
func WithClock(clock func() time.Time) Option {
	return func(uc *UseCases) {
		uc.clock = clock
	}
}

// New creates the usecase layer
func New(
	repo interfaces.Repository,
	gateway interfaces.ChatGateway,
	verifier interfaces.MembershipVerifier,
	engine *rolesync.Engine,
	recorder *audit.Recorder,
	guild *config.GuildConfig,
	opts ...Option,
) *UseCases {
	uc := &UseCases{
		repo:     repo,
		gateway:  gateway,
		verifier: verifier,
		engine:   engine,
		recorder: recorder,
		guild:    guild,
		clock:    time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Onboard = &OnboardUseCase{uc: uc}
	uc.Admin = &AdminUseCase{uc: uc}

	return uc
}
