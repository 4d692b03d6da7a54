// Package push delivers device notifications. Provider abstracts the
// transport so the fan-out logic in services can be tested without a real
// messaging backend; FCM is the production implementation.
package push

import (
	"context"
	"errors"
)

// MaxBatch is the largest number of tokens a single Send may carry.
const MaxBatch = 500

// Error codes reported in Result.ErrorCode.
const (
	CodeInvalidToken  = "messaging/invalid-registration-token"
	CodeNotRegistered = "messaging/registration-token-not-registered"
	CodeUnavailable   = "messaging/unavailable"
	CodeQuotaExceeded = "messaging/quota-exceeded"
	CodeInternal      = "messaging/internal-error"
	CodeUnknown       = "messaging/unknown-error"
)

// ErrBatchTooLarge is returned when Send receives more than MaxBatch tokens.
var ErrBatchTooLarge = errors.New("push: batch exceeds provider limit")

// Message is the payload sent to every token of a batch.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Result is the outcome for one token.
type Result struct {
	Token     string
	Success   bool
	ErrorCode string
}

// Provider sends one batch of at most MaxBatch tokens. A non-nil error means
// the whole batch failed; per-token failures are reported in the results.
//
//go:generate mockgen -destination=mocks/mock_provider.go -package=mocks github.com/tbourn/go-realty-backend/internal/push Provider
type Provider interface {
	Send(ctx context.Context, tokens []string, msg Message) ([]Result, error)
}

// ShouldPrune reports whether a token failing with code is permanently dead
// and must be removed from the token store.
func ShouldPrune(code string) bool {
	return code == CodeInvalidToken || code == CodeNotRegistered
}

// Batches splits tokens into consecutive slices of at most size (MaxBatch
// when size is out of range).
func Batches(tokens []string, size int) [][]string {
	if size <= 0 || size > MaxBatch {
		size = MaxBatch
	}
	var out [][]string
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, tokens[start:end])
	}
	return out
}
