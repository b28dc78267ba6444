// test/mock/audit.go
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/calltoleap/gatekeeper/audit"
)

// RecordingAuditService captures every audit event for assertions.
type RecordingAuditService struct {
	mu     sync.Mutex
	Events []audit.MembershipEvent

	QueryResult []audit.MembershipEvent
	QueryErr    error
}

func NewRecordingAuditService() *RecordingAuditService {
	return &RecordingAuditService{}
}

func (r *RecordingAuditService) Record(ctx context.Context, action, identity, email string, roles []string, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, audit.MembershipEvent{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Identity:  identity,
		Email:     email,
		Roles:     roles,
		Detail:    detail,
	})
}

func (r *RecordingAuditService) QueryEvents(ctx context.Context, from, to time.Time, identity, email string) ([]audit.MembershipEvent, error) {
	return r.QueryResult, r.QueryErr
}

// Actions returns the recorded action names in order.
func (r *RecordingAuditService) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]string, len(r.Events))
	for i, event := range r.Events {
		actions[i] = event.Action
	}
	return actions
}

// MockAdminService mocks service.IAdminService for controller tests.
type MockAdminService struct {
	mock.Mock
}

func (m *MockAdminService) ResetAttempts(ctx context.Context, identity string) {
	m.Called(ctx, identity)
}

func (m *MockAdminService) ResetAttemptsForRole(ctx context.Context, roleName string) (int, error) {
	args := m.Called(ctx, roleName)
	return args.Int(0), args.Error(1)
}
