package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"taskchain-dispatcher/internal/domain"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// sendRequest is the body of a push send call.
type sendRequest struct {
	Message domain.Message `json:"message"`
}

// sendResponse carries the provider-assigned message id.
type sendResponse struct {
	Name string `json:"name"`
}

type httpPushSender struct {
	client    *http.Client
	endpoint  string
	authToken string
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewHttpPushSender creates a sender posting messages to a push provider endpoint.
// Each Send is a single attempt; failures surface as errors.
func NewHttpPushSender(endpoint, authToken string, timeout time.Duration, logger *slog.Logger) domain.Sender {
	return &httpPushSender{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		endpoint:  endpoint,
		authToken: authToken,
		logger:    logger.With("sender", "http"),
		tracer:    otel.Tracer("taskchain-http-push-sender"),
	}
}

func (s *httpPushSender) Send(ctx context.Context, target domain.RecipientTarget, payload domain.NotificationPayload) (string, error) {
	ctx, span := s.tracer.Start(ctx, "sender.http.Send",
		trace.WithAttributes(attribute.String("push.target", target.String())))
	defer span.End()

	if err := target.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid target")
		return "", err
	}

	body, err := json.Marshal(sendRequest{Message: domain.NewMessage(target, payload)})
	if err != nil {
		return "", fmt.Errorf("failed to marshal push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "push request failed")
		return "", fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	// Read at most 1KB; the response is only an id or an error description.
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("push provider returned %s: %s", resp.Status, bytes.TrimSpace(respBody))
		span.RecordError(err)
		span.SetStatus(codes.Error, "push provider rejected message")
		return "", err
	}

	var out sendResponse
	if err := json.Unmarshal(respBody, &out); err != nil || out.Name == "" {
		err := fmt.Errorf("push provider returned no message id: %q", respBody)
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed provider response")
		return "", err
	}
	return out.Name, nil
}
