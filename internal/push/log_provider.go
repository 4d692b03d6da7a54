package push

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogProvider reports every token as delivered and only logs the send.
// It is used when no FCM credentials are configured.
type LogProvider struct{}

// Send implements Provider.
func (LogProvider) Send(_ context.Context, tokens []string, msg Message) ([]Result, error) {
	if len(tokens) > MaxBatch {
		return nil, ErrBatchTooLarge
	}
	log.Debug().
		Int("tokens", len(tokens)).
		Str("title", msg.Title).
		Msg("push send (log only)")

	out := make([]Result, len(tokens))
	for i, tok := range tokens {
		out[i] = Result{Token: tok, Success: true}
	}
	return out, nil
}
