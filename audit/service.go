// audit/service.go
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	logger "github.com/calltoleap/gatekeeper/logging"
)

type Service interface {
	Record(ctx context.Context, action, identity, email string, roles []string, detail string)
	QueryEvents(ctx context.Context, from, to time.Time, identity, email string) ([]MembershipEvent, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Record writes one event to the audit trail. Audit failures are logged and
// swallowed; the trail never blocks a grant or a revoke.
func (s *service) Record(ctx context.Context, action, identity, email string, roles []string, detail string) {
	event := MembershipEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Identity:  identity,
		Email:     email,
		Roles:     roles,
		Detail:    detail,
	}
	if err := s.repo.LogEvent(ctx, event); err != nil {
		logger.Warn("Failed to write audit event",
			zap.Error(err),
			zap.String("action", action),
			zap.String("identity", identity))
	}
}

func (s *service) QueryEvents(ctx context.Context, from, to time.Time, identity, email string) ([]MembershipEvent, error) {
	return s.repo.QueryEvents(ctx, from, to, identity, email)
}
