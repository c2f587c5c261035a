package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// FallbackService routes completions to the primary provider and retries on
// the secondary one when the primary is unreachable or out of quota.
type FallbackService struct {
	primary   Completer
	secondary Completer
	log       *zap.Logger
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(primary, secondary Completer, log *zap.Logger) *FallbackService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FallbackService{
		primary:   primary,
		secondary: secondary,
		log:       log,
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// an open breaker means the provider has been failing to respond
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	}

	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"resource_exhausted",
	}

	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

func failureReason(err error) string {
	switch {
	case isQuotaError(err):
		return "quota"
	case isConnectionError(err):
		return "connection"
	default:
		return "other"
	}
}

// Complete implements Completer
func (f *FallbackService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if f.primary == nil && f.secondary == nil {
		return "", errors.New("no AI provider available")
	}
	if f.primary == nil {
		return f.secondary.Complete(ctx, req)
	}

	result, err := f.primary.Complete(ctx, req)
	if err == nil {
		return result, nil
	}

	if ctx.Err() != nil || f.secondary == nil {
		return "", err
	}
	if !isConnectionError(err) && !isQuotaError(err) {
		return "", err
	}

	f.log.Warn("primary AI provider failed, falling back",
		zap.String("reason", failureReason(err)),
		zap.Error(err),
	)

	result, secondaryErr := f.secondary.Complete(ctx, req)
	if secondaryErr != nil {
		return "", fmt.Errorf("all AI providers failed: primary: %v; secondary: %w", err, secondaryErr)
	}
	return result, nil
}
