package resilience

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/case-extractor/internal/config"
)

// FromBatchConfig builds the per-case retry policy from batch settings.
func FromBatchConfig(cfg config.BatchConfig) RetryConfig {
	rc := DefaultRetryConfig()
	if cfg.RetryAttempts > 0 {
		rc.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryBackoffMs > 0 {
		rc.InitialBackoff = time.Duration(cfg.RetryBackoffMs) * time.Millisecond
	}
	return rc
}

// FromInferenceConfig builds the inference circuit breaker settings. A
// breaker_threshold of zero or less falls back to the default.
func FromInferenceConfig(cfg config.InferenceConfig) CircuitBreakerConfig {
	cb := DefaultCircuitBreakerConfig()
	if cfg.BreakerThreshold > 0 {
		cb.FailureThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerResetSecs > 0 {
		cb.ResetTimeout = time.Duration(cfg.BreakerResetSecs) * time.Second
	}
	cb.OnStateChange = func(from, to CircuitState) {
		zap.L().Warn("inference circuit breaker state change",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return cb
}
