package unlimited

import (
	"strings"
	"time"

	"github.com/ManuelReschke/PawPantry/internal/pkg/env"
)

// FailureMode selects what happens to a plan whose charge failed.
type FailureMode string

const (
	// FailureRetry keeps the plan active until MaxAttempts consecutive failures, then pauses it.
	FailureRetry FailureMode = "retry"
	// FailurePause pauses the plan on the first failed charge.
	FailurePause FailureMode = "pause"
)

// BillingFailurePolicy is the configuration point for failed charges.
type BillingFailurePolicy struct {
	Mode        FailureMode
	MaxAttempts int
}

// Config holds the tunables of the subscription builder.
type Config struct {
	DraftTTL        time.Duration
	BundleMinLines  int
	DraftCASRetries int
	FailurePolicy   BillingFailurePolicy
}

func DefaultConfig() Config {
	return Config{
		DraftTTL:        72 * time.Hour,
		BundleMinLines:  3,
		DraftCASRetries: 5,
		FailurePolicy: BillingFailurePolicy{
			Mode:        FailureRetry,
			MaxAttempts: 3,
		},
	}
}

// LoadConfigFromEnv reads UNLIMITED_* variables on top of DefaultConfig.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.DraftTTL = env.GetEnvDuration("UNLIMITED_DRAFT_TTL", cfg.DraftTTL)
	cfg.BundleMinLines = env.GetEnvInt("UNLIMITED_BUNDLE_MIN_LINES", cfg.BundleMinLines)
	cfg.DraftCASRetries = env.GetEnvInt("UNLIMITED_DRAFT_CAS_RETRIES", cfg.DraftCASRetries)
	cfg.FailurePolicy.MaxAttempts = env.GetEnvInt("UNLIMITED_BILLING_MAX_ATTEMPTS", cfg.FailurePolicy.MaxAttempts)

	switch FailureMode(strings.ToLower(strings.TrimSpace(env.GetEnv("UNLIMITED_BILLING_FAILURE_POLICY", "")))) {
	case FailurePause:
		cfg.FailurePolicy.Mode = FailurePause
	case FailureRetry:
		cfg.FailurePolicy.Mode = FailureRetry
	}
	return cfg.normalized()
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.DraftTTL <= 0 {
		c.DraftTTL = d.DraftTTL
	}
	if c.BundleMinLines <= 0 {
		c.BundleMinLines = d.BundleMinLines
	}
	if c.DraftCASRetries <= 0 {
		c.DraftCASRetries = d.DraftCASRetries
	}
	if c.FailurePolicy.Mode != FailurePause && c.FailurePolicy.Mode != FailureRetry {
		c.FailurePolicy.Mode = d.FailurePolicy.Mode
	}
	if c.FailurePolicy.MaxAttempts <= 0 {
		c.FailurePolicy.MaxAttempts = d.FailurePolicy.MaxAttempts
	}
	return c
}
