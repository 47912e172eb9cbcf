package memory

import (
	"github.com/m-mizutani/goerr/v2"

	"github.com/chapterkit/doorman/pkg/domain/interfaces"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = goerr.New("record not found", goerr.T(types.ErrTagNotFound))

// Memory is the in-memory repository used for development and tests
type Memory struct {
	user    *userRepository
	session *sessionRepository
	audit   *auditRepository
}

var _ interfaces.Repository = &Memory{}

// Option configures the in-memory repository
type Option func(*Memory)

// WithAuditWindow bounds how many audit events are retained before the
// oldest are dropped.
func WithAuditWindow(n int) Option {
	return func(m *Memory) {
		m.audit.window = n
	}
}

func New(opts ...Option) *Memory {
	m := &Memory{
		user:    newUserRepository(),
		session: newSessionRepository(),
		audit:   newAuditRepository(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Memory) User() interfaces.UserRepository {
	return m.user
}

func (m *Memory) Session() interfaces.SessionRepository {
	return m.session
}

func (m *Memory) Audit() interfaces.AuditRepository {
	return m.audit
}

func (m *Memory) Close() error {
	return nil
}
