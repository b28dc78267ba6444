// controller/admin_controller_test.go
package controller_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"

	"github.com/calltoleap/gatekeeper/audit"
	"github.com/calltoleap/gatekeeper/controller"
	gate_errors "github.com/calltoleap/gatekeeper/errors"
	logger "github.com/calltoleap/gatekeeper/logging"
	"github.com/calltoleap/gatekeeper/test/mock"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestAdminController(t *testing.T) {
	logger.InitLogger(t.TempDir())
	defer logger.Sync()

	mockAdminService := new(mock.MockAdminService)
	auditService := mock.NewRecordingAuditService()
	adminController := controller.NewAdminController(mockAdminService, auditService)

	router := setupRouter()
	api := router.Group("/")
	adminController.RegisterRoutes(api)

	t.Run("ResetAttempts_Success", func(t *testing.T) {
		mockAdminService.On("ResetAttempts", tmock.Anything, "user-1").Return().Once()

		body := strings.NewReader(`{"identity":"user-1"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/attempts/reset", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockAdminService.AssertExpectations(t)
	})

	t.Run("ResetAttempts_Failure_MissingIdentity", func(t *testing.T) {
		body := strings.NewReader(`{}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/attempts/reset", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ResetAttemptsForRole_Success", func(t *testing.T) {
		mockAdminService.On("ResetAttemptsForRole", tmock.Anything, "Community").Return(5, nil).Once()

		body := strings.NewReader(`{"role":"Community"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/attempts/reset-role", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]int
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 5, resp["reset"])
		mockAdminService.AssertExpectations(t)
	})

	t.Run("ResetAttemptsForRole_Failure_NotFound", func(t *testing.T) {
		mockAdminService.On("ResetAttemptsForRole", tmock.Anything, "NoSuchRole").
			Return(0, gate_errors.ErrRoleNotFound).Once()

		body := strings.NewReader(`{"role":"NoSuchRole"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/attempts/reset-role", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("QueryAudit_Success", func(t *testing.T) {
		auditService.QueryResult = []audit.MembershipEvent{
			{ID: "1", Timestamp: time.Now().UTC(), Action: audit.ActionVerified, Identity: "user-1"},
		}
		auditService.QueryErr = nil

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/audit?identity=user-1", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var events []audit.MembershipEvent
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
		assert.Len(t, events, 1)
		assert.Equal(t, audit.ActionVerified, events[0].Action)
	})

	t.Run("QueryAudit_EmptyResultIsEmptyArray", func(t *testing.T) {
		auditService.QueryResult = nil
		auditService.QueryErr = nil

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/audit", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
	})

	t.Run("QueryAudit_Failure_BadTimeWindow", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/audit?from=yesterday", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("QueryAudit_Failure_StoreError", func(t *testing.T) {
		auditService.QueryErr = assert.AnError

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/audit", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
