package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCM sends through Firebase Cloud Messaging.
type FCM struct {
	client *messaging.Client
}

// NewFCM builds a messaging client from a service account credentials file.
func NewFCM(ctx context.Context, credentialsFile string) (*FCM, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("push: init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("push: init messaging client: %w", err)
	}
	return &FCM{client: client}, nil
}

// Send delivers msg to tokens with one multicast request.
func (f *FCM) Send(ctx context.Context, tokens []string, msg Message) ([]Result, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if len(tokens) > MaxBatch {
		return nil, ErrBatchTooLarge
	}

	br, err := f.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       tokens,
		Data:         msg.Data,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
	})
	if err != nil {
		return nil, err
	}

	out := make([]Result, len(tokens))
	for i, tok := range tokens {
		out[i] = Result{Token: tok}
		if i >= len(br.Responses) {
			out[i].ErrorCode = CodeUnknown
			continue
		}
		r := br.Responses[i]
		out[i].Success = r.Success
		if !r.Success {
			out[i].ErrorCode = errorCode(r.Error)
		}
	}
	return out, nil
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return CodeUnknown
	case messaging.IsUnregistered(err):
		return CodeNotRegistered
	case messaging.IsInvalidArgument(err):
		return CodeInvalidToken
	case messaging.IsUnavailable(err):
		return CodeUnavailable
	case messaging.IsQuotaExceeded(err):
		return CodeQuotaExceeded
	case messaging.IsInternal(err):
		return CodeInternal
	default:
		return CodeUnknown
	}
}
