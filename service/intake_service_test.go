// service/intake_service_test.go
package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gate_errors "github.com/calltoleap/gatekeeper/errors"
	logger "github.com/calltoleap/gatekeeper/logging"
	"github.com/calltoleap/gatekeeper/model"
	"github.com/calltoleap/gatekeeper/service"
	"github.com/calltoleap/gatekeeper/test/mock"
	"github.com/calltoleap/gatekeeper/util"
)

// stubVerifier records Verify calls without touching any store.
type stubVerifier struct {
	identities []string
	emails     []string
	outcome    model.VerificationOutcome
	err        error
}

func (s *stubVerifier) Verify(ctx context.Context, identity, email string) (model.VerificationOutcome, error) {
	s.identities = append(s.identities, identity)
	s.emails = append(s.emails, email)
	return s.outcome, s.err
}

type intakeFixture struct {
	chat     *mock.FakeChatService
	limiter  *service.AttemptLimiter
	verifier *stubVerifier
	intake   *service.IntakeService
}

func newIntakeFixture(t *testing.T, mode, channelID string) *intakeFixture {
	t.Helper()

	chatSvc := mock.NewFakeChatService()
	chatSvc.AddRole("r-mod", "Moderator", 50)

	limiter := service.NewAttemptLimiter(3)
	verifier := &stubVerifier{outcome: model.OutcomeVerified}
	auditSvc := mock.NewRecordingAuditService()
	roleSync := service.NewRoleSyncService(chatSvc)
	adminSvc := service.NewAdminService(limiter, chatSvc, auditSvc)
	notifications := util.NewNotificationService(chatSvc, "ops-channel")

	intake := service.NewIntakeService(
		chatSvc, limiter, verifier, roleSync, adminSvc,
		util.NewValidationUtil(), notifications,
		mode, channelID, "Moderator")

	return &intakeFixture{chat: chatSvc, limiter: limiter, verifier: verifier, intake: intake}
}

func dmMessage(author, content string) model.InboundMessage {
	return model.InboundMessage{
		MessageID:     "m1",
		ChannelID:     "dm-channel",
		AuthorID:      author,
		Content:       content,
		DirectMessage: true,
	}
}

func channelMessage(author, channelID, content string) model.InboundMessage {
	return model.InboundMessage{
		MessageID: "m1",
		ChannelID: channelID,
		AuthorID:  author,
		GuildID:   "g1",
		Content:   content,
	}
}

func TestIntakeService(t *testing.T) {
	logger.InitLogger(t.TempDir())
	defer logger.Sync()
	ctx := context.Background()

	t.Run("DMModeIgnoresChannelTraffic", func(t *testing.T) {
		f := newIntakeFixture(t, service.IntakeModeDM, "")

		err := f.intake.HandleMessage(ctx, channelMessage("user-1", "general", "alice@x.com"))
		require.NoError(t, err)
		assert.Empty(t, f.verifier.emails)
		assert.Equal(t, 0, f.limiter.Attempts("user-1"))
	})

	t.Run("ChannelModeIgnoresOtherChannels", func(t *testing.T) {
		f := newIntakeFixture(t, service.IntakeModeChannel, "verify-here")

		err := f.intake.HandleMessage(ctx, channelMessage("user-1", "general", "alice@x.com"))
		require.NoError(t, err)
		assert.Empty(t, f.verifier.emails)
	})

	t.Run("ValidSubmissionReachesVerifierNormalized", func(t *testing.T) {
		f := newIntakeFixture(t, service.IntakeModeDM, "")
		f.chat.AddMember("user-1", "alice")

		err := f.intake.HandleMessage(ctx, dmMessage("user-1", "  `Alice@X.com`  "))
		require.NoError(t, err)
		require.Len(t, f.verifier.emails, 1)
		assert.Equal(t, "alice@x.com", f.verifier.emails[0])
		assert.Equal(t, "user-1", f.verifier.identities[0])
	})

	t.Run("InvalidEmailPromptsWithoutVerifying", func(t *testing.T) {
		f := newIntakeFixture(t, service.IntakeModeDM, "")

		err := f.intake.HandleMessage(ctx, dmMessage("user-1", "not an email"))
		assert.ErrorIs(t, err, gate_errors.ErrInvalidEmail)
		assert.Empty(t, f.verifier.emails)
		require.Len(t, f.chat.DirectMessages["user-1"], 1)
		assert.Contains(t, f.chat.DirectMessages["user-1"][0], "doesn't look like an email")
	})

	t.Run("InvalidSubmissionsConsumeAttempts", func(t *testing.T) {
		f := newIntakeFixture(t, service.IntakeModeDM, "")

		for i := 0; i < 3; i++ {
			f.intake.HandleMessage(ctx, dmMessage("user-1", "garbage"))
		}

		// The fourth submission is refused even though the email is valid.
		err := f.intake.HandleMessage(ctx, dmMessage("user-1", "alice@x.com"))
		assert.ErrorIs(t, err, gate_errors.ErrRateLimited)
		assert.Empty(t, f.verifier.emails)
	})

	t.Run("AttemptCeilingMessagesUser", func(t *testing.T) {
		f := newIntakeFixture(t, service.IntakeModeDM, "")
		f.chat.AddMember("user-1", "alice")

		for i := 0; i < 3; i++ {
			require.NoError(t, f.intake.HandleMessage(ctx, dmMessage("user-1", "alice@x.com")))
		}
		err := f.intake.HandleMessage(ctx, dmMessage("user-1", "alice@x.com"))
		assert.ErrorIs(t, err, gate_errors.ErrRateLimited)

		last := f.chat.DirectMessages["user-1"][len(f.chat.DirectMessages["user-1"])-1]
		assert.Contains(t, last, "maximum number of verification attempts")
		assert.Len(t, f.verifier.emails, 3)
	})

	t.Run("ChannelModeRedactsSubmission", func(t *testing.T) {
		f := newIntakeFixture(t, service.IntakeModeChannel, "verify-here")

		f.intake.HandleMessage(ctx, channelMessage("user-1", "verify-here", "alice@x.com"))
		assert.Equal(t, []string{"m1"}, f.chat.DeletedMessages)
	})

	t.Run("DMModeDoesNotRedact", func(t *testing.T) {
		f := newIntakeFixture(t, service.IntakeModeDM, "")

		f.intake.HandleMessage(ctx, dmMessage("user-1", "alice@x.com"))
		assert.Empty(t, f.chat.DeletedMessages)
	})

	t.Run("AlreadyClaimedIsNotAHandlerError", func(t *testing.T) {
		f := newIntakeFixture(t, service.IntakeModeDM, "")
		f.verifier.outcome = model.OutcomeAlreadyClaimed
		f.verifier.err = gate_errors.ErrAlreadyClaimed

		err := f.intake.HandleMessage(ctx, dmMessage("user-1", "alice@x.com"))
		assert.NoError(t, err)
	})

	t.Run("MemberJoinSendsPrompt", func(t *testing.T) {
		f := newIntakeFixture(t, service.IntakeModeDM, "")

		err := f.intake.HandleMemberJoin(ctx, model.MemberJoined{UserID: "user-1", Username: "alice"})
		require.NoError(t, err)
		require.Len(t, f.chat.DirectMessages["user-1"], 1)
		assert.Contains(t, f.chat.DirectMessages["user-1"][0], "email address")
	})

	t.Run("ResetCommandByModerator", func(t *testing.T) {
		f := newIntakeFixture(t, service.IntakeModeDM, "")
		f.chat.AddMember("mod-1", "mod", "r-mod")

		f.limiter.TryConsume("user-1")
		f.limiter.TryConsume("user-1")

		err := f.intake.HandleMessage(ctx, dmMessage("mod-1", "!resetattempts <@user-1>"))
		require.NoError(t, err)
		assert.Equal(t, 0, f.limiter.Attempts("user-1"))
		assert.Equal(t, 0, f.limiter.Attempts("mod-1"))
	})

	t.Run("ResetCommandUnauthorized", func(t *testing.T) {
		f := newIntakeFixture(t, service.IntakeModeDM, "")
		f.chat.AddMember("user-2", "bob")

		f.limiter.TryConsume("user-1")
		err := f.intake.HandleMessage(ctx, dmMessage("user-2", "!resetattempts <@user-1>"))
		assert.ErrorIs(t, err, gate_errors.ErrUnauthorized)
		assert.Equal(t, 1, f.limiter.Attempts("user-1"))
	})
}
