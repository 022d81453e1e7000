package sms

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/guonaihong/gout"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Sender delivers a text message to a mobile number.
type Sender interface {
	Send(ctx context.Context, number, message string) error
}

// SemaphoreSender posts messages to the Semaphore SMS gateway.
type SemaphoreSender struct {
	apiKey   string
	sender   string
	endpoint string
	timeout  time.Duration
}

func NewSemaphoreSender(apiKey, sender, endpoint string) *SemaphoreSender {
	return &SemaphoreSender{
		apiKey:   apiKey,
		sender:   sender,
		endpoint: endpoint,
		timeout:  defaultTimeout,
	}
}

func (s *SemaphoreSender) Send(ctx context.Context, number, message string) error {
	var (
		body string
		code int
	)

	err := gout.POST(s.endpoint).
		WithContext(ctx).
		SetTimeout(s.timeout).
		SetWWWForm(gout.H{
			"apikey":     s.apiKey,
			"number":     number,
			"message":    message,
			"sendername": s.sender,
		}).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return fmt.Errorf("semaphore request failed: %w", err)
	}
	if code < http.StatusOK || code >= http.StatusMultipleChoices {
		return fmt.Errorf("semaphore responded %d: %s", code, body)
	}

	zap.L().Info("sms sent", zap.String("number", number))
	return nil
}
