// service/limiter_service_test.go
package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	logger "github.com/calltoleap/gatekeeper/logging"
	"github.com/calltoleap/gatekeeper/service"
)

func TestAttemptLimiter(t *testing.T) {
	logger.InitLogger(t.TempDir())
	defer logger.Sync()

	t.Run("AllowsUpToThreshold", func(t *testing.T) {
		limiter := service.NewAttemptLimiter(3)

		assert.True(t, limiter.TryConsume("user-1"))
		assert.True(t, limiter.TryConsume("user-1"))
		assert.True(t, limiter.TryConsume("user-1"))
		assert.False(t, limiter.TryConsume("user-1"))
		assert.False(t, limiter.TryConsume("user-1"))
		assert.Equal(t, 3, limiter.Attempts("user-1"))
	})

	t.Run("CountsPerIdentity", func(t *testing.T) {
		limiter := service.NewAttemptLimiter(1)

		assert.True(t, limiter.TryConsume("user-1"))
		assert.True(t, limiter.TryConsume("user-2"))
		assert.False(t, limiter.TryConsume("user-1"))
	})

	t.Run("ResetRestoresAllowance", func(t *testing.T) {
		limiter := service.NewAttemptLimiter(2)

		limiter.TryConsume("user-1")
		limiter.TryConsume("user-1")
		assert.False(t, limiter.TryConsume("user-1"))

		limiter.Reset("user-1")
		assert.Equal(t, 0, limiter.Attempts("user-1"))
		assert.True(t, limiter.TryConsume("user-1"))
	})

	t.Run("ResetAllClearsListedIdentities", func(t *testing.T) {
		limiter := service.NewAttemptLimiter(1)

		limiter.TryConsume("user-1")
		limiter.TryConsume("user-2")
		limiter.TryConsume("user-3")

		limiter.ResetAll([]string{"user-1", "user-2"})
		assert.True(t, limiter.TryConsume("user-1"))
		assert.True(t, limiter.TryConsume("user-2"))
		assert.False(t, limiter.TryConsume("user-3"))
	})
}
