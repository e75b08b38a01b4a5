package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// SendGridProvider sends emails via the SendGrid v3 mail API.
type SendGridProvider struct {
	apiKey   string
	fromAddr string
	fromName string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewSendGridProvider creates a new SendGrid email provider.
func NewSendGridProvider(apiKey, fromAddr, fromName string, logger *slog.Logger) *SendGridProvider {
	return &SendGridProvider{
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		endpoint: "https://api.sendgrid.com/v3/mail/send",
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// sendGridRequest represents the SendGrid v3 send request.
type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send sends one email via the SendGrid API. Rate-limit and server errors
// are retried; any other non-2xx response is treated as permanent.
func (p *SendGridProvider) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	// SendGrid requires text/plain before text/html in the content array.
	content := []sendGridContent{}
	if textBody != "" {
		content = append(content, sendGridContent{Type: "text/plain", Value: textBody})
	}
	content = append(content, sendGridContent{Type: "text/html", Value: htmlBody})

	reqBody := sendGridRequest{
		Personalizations: []sendGridPersonalization{
			{To: []sendGridAddress{{Email: to}}},
		},
		From: sendGridAddress{
			Email: p.fromAddr,
			Name:  p.fromName,
		},
		Subject: subject,
		Content: content,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retry.Do(
		func() error {
			p.logger.Info("SendGrid API request starting",
				"method", "POST",
				"endpoint", "mail/send",
				"to", to,
				"subject", subject)

			startTime := time.Now()
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				p.endpoint, bytes.NewReader(jsonData))
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}

			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+p.apiKey)

			resp, err := p.client.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				p.logger.Warn("SendGrid API request failed, will retry",
					"to", to,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					p.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				// Rate limits and server errors are transient; other
				// 4xx responses won't improve on retry.
				if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
					p.logger.Warn("SendGrid API returned retryable status",
						"status_code", resp.StatusCode,
						"to", to)
					return fmt.Errorf("HTTP %d", resp.StatusCode)
				}
				p.logger.Warn("SendGrid API rejected request",
					"status_code", resp.StatusCode,
					"to", to)
				return retry.Unrecoverable(fmt.Errorf("HTTP %d", resp.StatusCode))
			}

			p.logger.Info("SendGrid API request completed",
				"endpoint", "mail/send",
				"to", to,
				"duration_ms", duration.Milliseconds(),
				"status", "success")

			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Info("Retrying SendGrid email send after error", "attempt", n, "error", err)
		}),
	)
}
