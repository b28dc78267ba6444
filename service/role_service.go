// service/role_service.go
package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/calltoleap/gatekeeper/chat"
	gate_errors "github.com/calltoleap/gatekeeper/errors"
	logger "github.com/calltoleap/gatekeeper/logging"
	"github.com/calltoleap/gatekeeper/model"
)

// IRoleSyncService defines the interface for privilege operations
type IRoleSyncService interface {
	Grant(ctx context.Context, identity string, roleNames []string) model.SyncResult
	Revoke(ctx context.Context, identity string, roleNames []string) model.SyncResult
	Has(ctx context.Context, identity, roleName string) (bool, error)
}

// RoleSyncService applies named privileges to chat identities, idempotently.
// Granting an already-held privilege or revoking an absent one is a no-op
// success. Role-not-found and insufficient-hierarchy conditions are reported
// per privilege, never raised as panics, and a multi-privilege request is
// never partially applied silently.
type RoleSyncService struct {
	chat chat.Service
}

var _ IRoleSyncService = &RoleSyncService{}

func NewRoleSyncService(chatSvc chat.Service) *RoleSyncService {
	return &RoleSyncService{chat: chatSvc}
}

// Grant attaches every named privilege to identity.
func (s *RoleSyncService) Grant(ctx context.Context, identity string, roleNames []string) model.SyncResult {
	return s.apply(ctx, identity, roleNames, true)
}

// Revoke detaches every named privilege from identity.
func (s *RoleSyncService) Revoke(ctx context.Context, identity string, roleNames []string) model.SyncResult {
	return s.apply(ctx, identity, roleNames, false)
}

// Has reports whether identity currently holds the named privilege.
func (s *RoleSyncService) Has(ctx context.Context, identity, roleName string) (bool, error) {
	role, err := s.chat.RoleByName(ctx, roleName)
	if err != nil {
		return false, err
	}
	return s.chat.HasRole(ctx, identity, role.ID)
}

func (s *RoleSyncService) apply(ctx context.Context, identity string, roleNames []string, grant bool) model.SyncResult {
	var result model.SyncResult

	manage, err := s.chat.HasManageRoles(ctx)
	if err == nil && !manage {
		err = gate_errors.ErrMissingManageRoles
	}
	if err != nil {
		for _, name := range roleNames {
			result.Failures = append(result.Failures, model.RoleFailure{Role: name, Err: err})
		}
		return result
	}

	botTop, err := s.chat.BotTopRolePosition(ctx)
	if err != nil {
		for _, name := range roleNames {
			result.Failures = append(result.Failures, model.RoleFailure{Role: name, Err: err})
		}
		return result
	}

	for _, name := range roleNames {
		if err := s.applyOne(ctx, identity, name, botTop, grant, &result); err != nil {
			result.Failures = append(result.Failures, model.RoleFailure{Role: name, Err: err})
		}
	}

	if !result.Ok() {
		logger.Warn("Privilege sync incomplete",
			zap.String("identity", identity),
			zap.Bool("grant", grant),
			zap.Strings("failed", result.FailedRoles()))
	}
	return result
}

func (s *RoleSyncService) applyOne(ctx context.Context, identity, name string, botTop int, grant bool, result *model.SyncResult) error {
	role, err := s.chat.RoleByName(ctx, name)
	if err != nil {
		return err
	}
	if role.Position >= botTop {
		return gate_errors.ErrInsufficientHierarchy
	}

	held, err := s.chat.HasRole(ctx, identity, role.ID)
	if err != nil {
		return err
	}

	if grant {
		if held {
			result.Skipped = append(result.Skipped, name)
			return nil
		}
		if err := s.chat.GrantRole(ctx, identity, role.ID); err != nil {
			return err
		}
	} else {
		if !held {
			result.Skipped = append(result.Skipped, name)
			return nil
		}
		if err := s.chat.RevokeRole(ctx, identity, role.ID); err != nil {
			return err
		}
	}

	result.Applied = append(result.Applied, name)
	logger.Info("Privilege applied",
		zap.String("identity", identity),
		zap.String("role", name),
		zap.Bool("grant", grant))
	return nil
}

// IsReportedFailure tells a configuration problem (role missing, hierarchy,
// permission) apart from a transport error.
func IsReportedFailure(err error) bool {
	return errors.Is(err, gate_errors.ErrRoleNotFound) ||
		errors.Is(err, gate_errors.ErrInsufficientHierarchy) ||
		errors.Is(err, gate_errors.ErrMissingManageRoles)
}
