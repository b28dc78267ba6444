// service/admin_service.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/calltoleap/gatekeeper/audit"
	"github.com/calltoleap/gatekeeper/chat"
	logger "github.com/calltoleap/gatekeeper/logging"
)

// IAdminService defines the interface for administrative operations
type IAdminService interface {
	ResetAttempts(ctx context.Context, identity string)
	ResetAttemptsForRole(ctx context.Context, roleName string) (int, error)
}

// AdminService exposes the restricted operations: resetting attempt
// counters for one identity or for every holder of a privilege.
type AdminService struct {
	limiter      *AttemptLimiter
	chat         chat.Service
	auditService audit.Service
}

var _ IAdminService = &AdminService{}

func NewAdminService(limiter *AttemptLimiter, chatSvc chat.Service, auditService audit.Service) *AdminService {
	return &AdminService{
		limiter:      limiter,
		chat:         chatSvc,
		auditService: auditService,
	}
}

// ResetAttempts clears the attempt counter for a single identity.
func (s *AdminService) ResetAttempts(ctx context.Context, identity string) {
	s.limiter.Reset(identity)
	s.auditService.Record(ctx, audit.ActionAttemptsReset, identity, "", nil, "")
}

// ResetAttemptsForRole clears the attempt counters of every member holding
// the named privilege and returns how many were reset.
func (s *AdminService) ResetAttemptsForRole(ctx context.Context, roleName string) (int, error) {
	role, err := s.chat.RoleByName(ctx, roleName)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve role %q: %w", roleName, err)
	}

	members, err := s.chat.MembersWithRole(ctx, role.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list holders of %q: %w", roleName, err)
	}

	identities := make([]string, 0, len(members))
	for _, m := range members {
		identities = append(identities, m.ID)
	}
	s.limiter.ResetAll(identities)

	logger.Info("Attempt counters reset for role holders",
		zap.String("role", roleName),
		zap.Int("count", len(identities)))
	s.auditService.Record(ctx, audit.ActionAttemptsReset, "", "", []string{roleName},
		fmt.Sprintf("%d identities", len(identities)))
	return len(identities), nil
}
