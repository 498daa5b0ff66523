package unlimited

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("UNLIMITED_DRAFT_TTL", "2h")
	t.Setenv("UNLIMITED_BUNDLE_MIN_LINES", "4")
	t.Setenv("UNLIMITED_BILLING_FAILURE_POLICY", " PAUSE ")
	t.Setenv("UNLIMITED_BILLING_MAX_ATTEMPTS", "0")

	cfg := LoadConfigFromEnv()
	assert.Equal(t, 2*time.Hour, cfg.DraftTTL)
	assert.Equal(t, 4, cfg.BundleMinLines)
	assert.Equal(t, FailurePause, cfg.FailurePolicy.Mode)
	assert.Equal(t, DefaultConfig().FailurePolicy.MaxAttempts, cfg.FailurePolicy.MaxAttempts)
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("UNLIMITED_DRAFT_TTL", "soon")
	t.Setenv("UNLIMITED_BILLING_FAILURE_POLICY", "ignore")

	cfg := LoadConfigFromEnv()
	assert.Equal(t, 72*time.Hour, cfg.DraftTTL)
	assert.Equal(t, 3, cfg.BundleMinLines)
	assert.Equal(t, FailureRetry, cfg.FailurePolicy.Mode)
}
