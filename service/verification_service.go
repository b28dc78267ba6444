// service/verification_service.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/calltoleap/gatekeeper/audit"
	"github.com/calltoleap/gatekeeper/dao"
	gate_errors "github.com/calltoleap/gatekeeper/errors"
	logger "github.com/calltoleap/gatekeeper/logging"
	"github.com/calltoleap/gatekeeper/model"
	"github.com/calltoleap/gatekeeper/util"
)

// IVerificationService defines the interface for the verification engine
type IVerificationService interface {
	Verify(ctx context.Context, identity, email string) (model.VerificationOutcome, error)
}

// VerificationService drives the grant transition: it matches a submitted
// email to a membership row and claims the row for the submitting identity.
//
// Ordering rule: the premium grant must succeed before the row is marked
// used. A failed grant leaves the row untouched; a failed row write after a
// successful grant is compensated by revoking exactly the privileges that
// were applied. The row is therefore never marked used without a live
// grant, and never granted without the mark eventually persisting.
type VerificationService struct {
	records         *dao.RecordDAO
	roleSync        IRoleSyncService
	notificationSvc *util.NotificationService
	auditService    audit.Service
	locks           util.RowLocker
	premiumRoles    []string
	baselineRole    string
}

var _ IVerificationService = &VerificationService{}

func NewVerificationService(
	records *dao.RecordDAO,
	roleSync IRoleSyncService,
	notificationSvc *util.NotificationService,
	auditService audit.Service,
	locks util.RowLocker,
	premiumRoles []string,
	baselineRole string,
) *VerificationService {
	return &VerificationService{
		records:         records,
		roleSync:        roleSync,
		notificationSvc: notificationSvc,
		auditService:    auditService,
		locks:           locks,
		premiumRoles:    premiumRoles,
		baselineRole:    baselineRole,
	}
}

// Verify runs one verification attempt for (identity, email). The email is
// expected to be normalized already. All row mutations for the email happen
// under its single-writer lock so a concurrent reconciliation cycle cannot
// race on the same row.
func (s *VerificationService) Verify(ctx context.Context, identity, email string) (model.VerificationOutcome, error) {
	release, err := s.locks.Lock(ctx, dao.CanonicalEmail(email))
	if err != nil {
		return "", fmt.Errorf("failed to lock row for %s: %w", email, err)
	}
	defer release()

	rec, err := s.records.FindByEmail(ctx, email)
	if err != nil {
		logger.Error("Record lookup failed", zap.Error(err), zap.String("identity", identity))
		return "", fmt.Errorf("%w: %v", gate_errors.ErrStoreUnavailable, err)
	}

	if rec == nil {
		return s.handleNoRecord(ctx, identity, email)
	}
	if rec.Used() {
		return s.handleAlreadyClaimed(ctx, identity, email)
	}
	return s.claim(ctx, identity, email, *rec)
}

// handleNoRecord grants the baseline privilege only. Not an error: the user
// simply is not on the purchase list. No store mutation, no ack.
func (s *VerificationService) handleNoRecord(ctx context.Context, identity, email string) (model.VerificationOutcome, error) {
	if s.baselineRole != "" {
		if res := s.roleSync.Grant(ctx, identity, []string{s.baselineRole}); !res.Ok() {
			logger.Warn("Baseline grant incomplete",
				zap.String("identity", identity),
				zap.Strings("failed", res.FailedRoles()))
		}
	}
	logger.Info("No membership record for submission", zap.String("identity", identity))
	s.auditService.Record(ctx, audit.ActionNoRecord, identity, email, nil, "")
	return model.OutcomeNoRecord, nil
}

// handleAlreadyClaimed rejects without touching the store or any roles, so
// repeating the submission is idempotent.
func (s *VerificationService) handleAlreadyClaimed(ctx context.Context, identity, email string) (model.VerificationOutcome, error) {
	s.notificationSvc.SendDirect(ctx, identity,
		"This membership email has already been used. Please contact support if you believe this is a mistake.")
	logger.Info("Rejected already-claimed record",
		zap.String("identity", identity))
	s.auditService.Record(ctx, audit.ActionRejected, identity, email, nil, "record already claimed")
	return model.OutcomeAlreadyClaimed, gate_errors.ErrAlreadyClaimed
}

func (s *VerificationService) claim(ctx context.Context, identity, email string, rec model.MembershipRecord) (model.VerificationOutcome, error) {
	// Grant first. If any privilege fails, undo the ones that did apply
	// and leave the row unused.
	res := s.roleSync.Grant(ctx, identity, s.premiumRoles)
	if !res.Ok() {
		if len(res.Applied) > 0 {
			s.roleSync.Revoke(ctx, identity, res.Applied)
		}
		detail := fmt.Sprintf("failed roles: %v", res.FailedRoles())
		s.notificationSvc.NotifyOperator(ctx, fmt.Sprintf(
			"Premium grant failed for %s (%s). Check role names and bot hierarchy.", identity, detail))
		s.notificationSvc.SendDirect(ctx, identity,
			"There was an error processing your request. Please try again later.")
		s.auditService.Record(ctx, audit.ActionGrantFailed, identity, email, res.FailedRoles(), detail)
		return "", gate_errors.ErrRoleGrantFailed
	}

	rec.Status = model.StatusUsed
	rec.HolderID = identity
	if err := s.records.UpdateRecord(ctx, rec); err != nil {
		// No shared transaction with the store: roll the grant back so
		// both sides stay consistent.
		if len(res.Applied) > 0 {
			s.roleSync.Revoke(ctx, identity, res.Applied)
		}
		logger.Error("Failed to persist claimed record",
			zap.Error(err),
			zap.Int("row", rec.Row),
			zap.String("identity", identity))
		s.notificationSvc.SendDirect(ctx, identity,
			"There was an error processing your request. Please try again later.")
		s.auditService.Record(ctx, audit.ActionStoreFailed, identity, email, res.Applied, err.Error())
		return "", fmt.Errorf("%w: %v", gate_errors.ErrStoreUnavailable, err)
	}

	// A cancellation raised before the claim would otherwise fire later
	// against a now-valid membership; clear it proactively.
	s.clearPendingCancellation(ctx, email)

	s.notificationSvc.SendDirect(ctx, identity,
		"Access granted! You now have access to the private channels.")
	logger.Info("Membership verified",
		zap.String("identity", identity),
		zap.Int("row", rec.Row))
	s.auditService.Record(ctx, audit.ActionVerified, identity, email, s.premiumRoles, "")
	return model.OutcomeVerified, nil
}

func (s *VerificationService) clearPendingCancellation(ctx context.Context, email string) {
	entries, err := s.records.ListCancellations(ctx)
	if err != nil {
		logger.Warn("Could not check pending cancellations", zap.Error(err))
		return
	}
	for _, entry := range entries {
		if !dao.EmailsMatch(entry.Email, email) {
			continue
		}
		if err := s.records.ClearCancellation(ctx, entry); err != nil {
			logger.Error("Failed to clear stale cancellation entry",
				zap.Error(err),
				zap.Int("row", entry.Row))
			s.notificationSvc.NotifyOperator(ctx, fmt.Sprintf(
				"Could not clear a stale cancellation entry (row %d); a valid membership may be revoked on the next cycle.", entry.Row))
		} else {
			logger.Info("Cleared stale cancellation entry", zap.Int("row", entry.Row))
		}
	}
}
