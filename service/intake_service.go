// service/intake_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/calltoleap/gatekeeper/chat"
	gate_errors "github.com/calltoleap/gatekeeper/errors"
	logger "github.com/calltoleap/gatekeeper/logging"
	"github.com/calltoleap/gatekeeper/model"
	"github.com/calltoleap/gatekeeper/util"
)

// Intake surface modes.
const (
	IntakeModeDM      = "dm"
	IntakeModeChannel = "channel"
)

const resetCommand = "!resetattempts"

// IIntakeService defines the interface for inbound message handling
type IIntakeService interface {
	HandleMessage(ctx context.Context, msg model.InboundMessage) error
	HandleMemberJoin(ctx context.Context, joined model.MemberJoined) error
}

// IntakeService validates and normalizes inbound chat traffic before
// handing it to the verification engine. Only the designated intake surface
// is processed; everything else is ignored. Submitted emails are treated as
// sensitive and removed from the channel transcript regardless of validity.
type IntakeService struct {
	chat            chat.Service
	limiter         *AttemptLimiter
	verifier        IVerificationService
	roleSync        IRoleSyncService
	adminService    IAdminService
	validationUtil  *util.ValidationUtil
	notificationSvc *util.NotificationService
	intakeMode      string
	intakeChannelID string
	adminRole       string
}

var _ IIntakeService = &IntakeService{}

func NewIntakeService(
	chatSvc chat.Service,
	limiter *AttemptLimiter,
	verifier IVerificationService,
	roleSync IRoleSyncService,
	adminService IAdminService,
	validationUtil *util.ValidationUtil,
	notificationSvc *util.NotificationService,
	intakeMode, intakeChannelID, adminRole string,
) *IntakeService {
	return &IntakeService{
		chat:            chatSvc,
		limiter:         limiter,
		verifier:        verifier,
		roleSync:        roleSync,
		adminService:    adminService,
		validationUtil:  validationUtil,
		notificationSvc: notificationSvc,
		intakeMode:      intakeMode,
		intakeChannelID: intakeChannelID,
		adminRole:       adminRole,
	}
}

// HandleMessage processes one inbound message end to end.
func (s *IntakeService) HandleMessage(ctx context.Context, msg model.InboundMessage) error {
	if !s.fromIntakeSurface(msg) {
		return nil
	}

	if strings.HasPrefix(strings.TrimSpace(msg.Content), resetCommand) {
		return s.handleResetCommand(ctx, msg)
	}

	s.redact(ctx, msg)

	if !s.limiter.TryConsume(msg.AuthorID) {
		logger.Warn("Verification attempts exhausted", zap.String("identity", msg.AuthorID))
		s.notificationSvc.SendDirect(ctx, msg.AuthorID,
			"You have reached the maximum number of verification attempts. Please contact support.")
		return gate_errors.ErrRateLimited
	}

	email, err := s.validationUtil.NormalizeEmail(msg.Content)
	if err != nil {
		s.notificationSvc.SendDirect(ctx, msg.AuthorID,
			"That doesn't look like an email address. Please reply with the email you used for your purchase.")
		return err
	}

	_, err = s.verifier.Verify(ctx, msg.AuthorID, email)
	if err != nil && !errors.Is(err, gate_errors.ErrAlreadyClaimed) {
		// The engine already messaged the user and the operator channel.
		return err
	}
	return nil
}

// HandleMemberJoin welcomes a new member with the verification prompt.
func (s *IntakeService) HandleMemberJoin(ctx context.Context, joined model.MemberJoined) error {
	s.notificationSvc.SendDirect(ctx, joined.UserID,
		"Welcome! Please reply with the email address you used for your purchase to unlock the private channels.")
	logger.Info("Sent verification prompt to new member",
		zap.String("identity", joined.UserID),
		zap.String("username", joined.Username))
	return nil
}

func (s *IntakeService) fromIntakeSurface(msg model.InboundMessage) bool {
	switch s.intakeMode {
	case IntakeModeChannel:
		return msg.ChannelID == s.intakeChannelID
	default:
		return msg.DirectMessage
	}
}

// redact removes the submitted email from the channel transcript. DMs have
// no shared transcript and the bot cannot delete the other side's messages
// there, so redaction only applies in channel mode.
func (s *IntakeService) redact(ctx context.Context, msg model.InboundMessage) {
	if msg.DirectMessage {
		return
	}
	if err := s.chat.DeleteMessage(ctx, msg.ChannelID, msg.MessageID); err != nil {
		logger.Warn("Failed to redact submission message",
			zap.Error(err),
			zap.String("messageID", msg.MessageID))
	}
}

func (s *IntakeService) handleResetCommand(ctx context.Context, msg model.InboundMessage) error {
	if s.adminRole == "" {
		return nil
	}
	allowed, err := s.roleSync.Has(ctx, msg.AuthorID, s.adminRole)
	if err != nil || !allowed {
		logger.Warn("Unauthorized reset command",
			zap.String("identity", msg.AuthorID))
		return gate_errors.ErrUnauthorized
	}

	target := parseMention(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(msg.Content), resetCommand)))
	if target == "" {
		s.notificationSvc.SendDirect(ctx, msg.AuthorID, fmt.Sprintf("Usage: %s @member", resetCommand))
		return nil
	}

	s.adminService.ResetAttempts(ctx, target)
	s.notificationSvc.SendDirect(ctx, msg.AuthorID, fmt.Sprintf("Attempt counter reset for <@%s>.", target))
	return nil
}

// parseMention extracts a user ID from "<@123>", "<@!123>" or a bare ID.
func parseMention(arg string) string {
	arg = strings.TrimSuffix(strings.TrimPrefix(arg, "<@"), ">")
	arg = strings.TrimPrefix(arg, "!")
	if arg == "" || strings.ContainsAny(arg, " <>@") {
		return ""
	}
	return arg
}
