// internal/infra/shell/exec_push_sender.go
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"taskchain-dispatcher/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// execPushSender hands each message to an external command. The command receives the
// wire message as JSON on stdin and prints the message id on stdout.
type execPushSender struct {
	command string
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewExecPushSender creates a sender that runs command through bash for every message.
func NewExecPushSender(command string, timeout time.Duration, logger *slog.Logger) domain.Sender {
	return &execPushSender{
		command: command,
		timeout: timeout,
		logger:  logger.With("sender", "exec"),
		tracer:  otel.Tracer("taskchain-exec-push-sender"),
	}
}

func (s *execPushSender) Send(ctx context.Context, target domain.RecipientTarget, payload domain.NotificationPayload) (string, error) {
	ctx, span := s.tracer.Start(ctx, "sender.exec.Send",
		trace.WithAttributes(
			attribute.String("push.target", target.String()),
			attribute.String("push.command", s.command),
		))
	defer span.End()

	if err := target.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid target")
		return "", err
	}

	input, err := json.Marshal(domain.NewMessage(target, payload))
	if err != nil {
		return "", fmt.Errorf("failed to marshal push message: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "bash", "-c", s.command)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errOutput := strings.TrimSpace(stderr.String())
		if errOutput != "" {
			span.SetAttributes(attribute.String("shell.stderr", errOutput))
			err = fmt.Errorf("%w: %s", err, errOutput)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "push command failed")
		return "", fmt.Errorf("push command failed: %w", err)
	}

	messageID := strings.TrimSpace(stdout.String())
	if messageID == "" {
		err := fmt.Errorf("push command printed no message id")
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	s.logger.Debug("push command succeeded", "message_id", messageID)
	return messageID, nil
}
