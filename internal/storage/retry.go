package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jittakal/geobin/internal/config/dto"
	apperrors "github.com/jittakal/geobin/internal/errors"
)

// RetryPolicy retries retryable storage operations with exponential backoff.
// The zero value runs an operation once.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Logger         *zap.Logger
}

// RetryPolicyFromConfig converts retry settings. A disabled config yields
// a single attempt.
func RetryPolicyFromConfig(cfg dto.RetryConfig, logger *zap.Logger) RetryPolicy {
	if !cfg.Enabled {
		return RetryPolicy{MaxAttempts: 1, Logger: logger}
	}
	return RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: time.Duration(cfg.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.MaxBackoffMS) * time.Millisecond,
		Multiplier:     cfg.BackoffMultiplier,
		Logger:         logger,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	backoff := p.InitialBackoff
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == attempts || !apperrors.IsRetryable(err) {
			return err
		}

		logger.Warn("retrying storage operation",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * multiplier)
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
	return err
}
