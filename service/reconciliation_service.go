// service/reconciliation_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/calltoleap/gatekeeper/audit"
	"github.com/calltoleap/gatekeeper/chat"
	"github.com/calltoleap/gatekeeper/dao"
	gate_errors "github.com/calltoleap/gatekeeper/errors"
	logger "github.com/calltoleap/gatekeeper/logging"
	"github.com/calltoleap/gatekeeper/model"
	"github.com/calltoleap/gatekeeper/util"
)

// ReconciliationService is the background poller that detects cancellations
// and rolls premium access back. It corrects drift between the record
// store's status columns and the chat service's live role state.
type ReconciliationService struct {
	records         *dao.RecordDAO
	roleSync        IRoleSyncService
	chat            chat.Service
	notificationSvc *util.NotificationService
	auditService    audit.Service
	locks           util.RowLocker
	premiumRoles    []string
	interval        time.Duration
}

func NewReconciliationService(
	records *dao.RecordDAO,
	roleSync IRoleSyncService,
	chatSvc chat.Service,
	notificationSvc *util.NotificationService,
	auditService audit.Service,
	locks util.RowLocker,
	premiumRoles []string,
	interval time.Duration,
) *ReconciliationService {
	return &ReconciliationService{
		records:         records,
		roleSync:        roleSync,
		chat:            chatSvc,
		notificationSvc: notificationSvc,
		auditService:    auditService,
		locks:           locks,
		premiumRoles:    premiumRoles,
		interval:        interval,
	}
}

// Run executes one cycle immediately, then one per interval until ctx is
// cancelled. A cycle failure is logged and the loop moves on; it never
// terminates on its own.
func (s *ReconciliationService) Run(ctx context.Context) {
	logger.Info("Reconciliation poller started", zap.Duration("interval", s.interval))

	s.runCycleLogged(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Reconciliation poller stopped")
			return
		case <-ticker.C:
			s.runCycleLogged(ctx)
		}
	}
}

func (s *ReconciliationService) runCycleLogged(ctx context.Context) {
	if err := s.RunCycle(ctx); err != nil {
		logger.Error("Reconciliation cycle failed", zap.Error(err))
		s.auditService.Record(ctx, audit.ActionCycleFailed, "", "", nil, err.Error())
	}
}

// RunCycle performs a single reconciliation pass. A cycle with no pending
// cancellations performs no mutation. Per-entry failures are logged and the
// pass continues with the next entry.
func (s *ReconciliationService) RunCycle(ctx context.Context) error {
	// Reloading the membership table also rebuilds the email index for
	// the verification path.
	if _, err := s.records.Records(ctx); err != nil {
		return fmt.Errorf("failed to load membership records: %w", err)
	}
	entries, err := s.records.ListCancellations(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cancellation entries: %w", err)
	}

	if len(entries) == 0 {
		logger.Debug("Reconciliation cycle: nothing to do")
		return nil
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.processEntry(ctx, entry); err != nil {
			logger.Error("Failed to process cancellation entry",
				zap.Error(err),
				zap.Int("row", entry.Row))
		}
	}
	return nil
}

func (s *ReconciliationService) processEntry(ctx context.Context, entry model.CancellationEntry) error {
	release, err := s.locks.Lock(ctx, dao.CanonicalEmail(entry.Email))
	if err != nil {
		return fmt.Errorf("failed to lock row for cancellation: %w", err)
	}
	defer release()

	// The cycle's snapshot predates the lock. Re-read the entry and the
	// record under it, so a claim that landed in between (which marks the
	// row used and clears the entry) is not rolled back here.
	pending, err := s.records.CancellationPending(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to re-read cancellation row %d: %w", entry.Row, err)
	}
	if !pending {
		logger.Debug("Cancellation entry no longer pending", zap.Int("row", entry.Row))
		return nil
	}

	rec, err := s.records.FindByEmail(ctx, entry.Email)
	if err != nil {
		return fmt.Errorf("failed to look up record for cancellation row %d: %w", entry.Row, err)
	}
	if rec == nil {
		// Nothing to revoke; a pending orphan would poison every later
		// cycle, so the entry is cleared.
		logger.Warn("Cancellation entry without a matching record",
			zap.Int("row", entry.Row))
		return s.records.ClearCancellation(ctx, entry)
	}

	if rec.HolderID != "" {
		s.revokeHolder(ctx, *rec, entry.Email)
	}

	// Reset the row before clearing the entry: if the reset fails, the
	// entry stays pending and the next cycle retries.
	if err := s.records.ResetRecord(ctx, *rec); err != nil {
		return fmt.Errorf("failed to reset membership row %d: %w", rec.Row, err)
	}
	if err := s.records.ClearCancellation(ctx, entry); err != nil {
		return fmt.Errorf("failed to clear cancellation row %d: %w", entry.Row, err)
	}

	logger.Info("Cancellation reconciled",
		zap.Int("memberRow", rec.Row),
		zap.Int("cancellationRow", entry.Row))
	return nil
}

// revokeHolder rolls back the premium privileges of the record's holder.
// An identity that already left the guild is logged and skipped; the entry
// and row are still cleared by the caller so both tables converge.
func (s *ReconciliationService) revokeHolder(ctx context.Context, rec model.MembershipRecord, email string) {
	member, err := s.chat.ResolveMember(ctx, rec.HolderID)
	if err != nil {
		if errors.Is(err, gate_errors.ErrMemberUnresolvable) {
			logger.Warn("Cancellation holder no longer in guild",
				zap.String("identity", rec.HolderID))
			s.auditService.Record(ctx, audit.ActionMemberUnresolvable, rec.HolderID, email, nil, "")
			return
		}
		logger.Error("Failed to resolve cancellation holder",
			zap.Error(err),
			zap.String("identity", rec.HolderID))
		return
	}

	res := s.roleSync.Revoke(ctx, member.ID, s.premiumRoles)
	if !res.Ok() {
		s.notificationSvc.NotifyOperator(ctx, fmt.Sprintf(
			"Premium revoke incomplete for %s (failed roles: %v).", member.ID, res.FailedRoles()))
	}

	// Best-effort courtesy notice; failure here is never fatal.
	s.notificationSvc.SendDirect(ctx, member.ID,
		"Your membership has been cancelled and premium access removed. Contact support if this is unexpected.")

	s.auditService.Record(ctx, audit.ActionRevoked, member.ID, email, res.Applied, "")
}
