package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/logger"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes emails to the log instead of sending them.
type LogMailer struct {
	Log *slog.Logger
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	logger.OrDiscard(m.Log).Info("email", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

// SendPasswordResetEmailTask delivers one reset link.
type SendPasswordResetEmailTask struct {
	UserID      uint      `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Link        string    `json:"link"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Config returns the queue configuration for reset emails.
func (t SendPasswordResetEmailTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "send_password_reset_email",
		MaxAttempts: 5,
		Backoff:     30 * time.Second,
		Timeout:     30 * time.Second,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// SendPasswordResetEmailProcessor creates a processor function for SendPasswordResetEmailTask.
func SendPasswordResetEmailProcessor(mailer Mailer, log *slog.Logger) backlite.QueueProcessor[SendPasswordResetEmailTask] {
	log = logger.OrDiscard(log).With("component", "tasks", "queue", "send_password_reset_email")
	return func(ctx context.Context, task SendPasswordResetEmailTask) error {
		if mailer == nil {
			return fmt.Errorf("mailer not configured")
		}
		if !task.ExpiresAt.IsZero() && time.Now().After(task.ExpiresAt) {
			log.Warn("dropping expired reset email", "user_id", task.UserID)
			return nil
		}

		if err := mailer.Send(ctx, resetMessage(task)); err != nil {
			return fmt.Errorf("send reset email: %w", err)
		}
		log.Info("reset email sent", "user_id", task.UserID)
		return nil
	}
}

// NewSendPasswordResetEmailQueue creates a backlite queue for reset emails.
func NewSendPasswordResetEmailQueue(mailer Mailer, log *slog.Logger) backlite.Queue {
	return backlite.NewQueue(SendPasswordResetEmailProcessor(mailer, log))
}

func resetMessage(task SendPasswordResetEmailTask) Message {
	name := strings.TrimSpace(task.DisplayName)
	if name == "" {
		name = task.Email
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	b.WriteString("Someone asked to reset the password for your library account.\n")
	fmt.Fprintf(&b, "Open this link to choose a new one:\n\n%s\n\n", task.Link)
	if !task.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "The link expires at %s.\n", task.ExpiresAt.UTC().Format(time.RFC1123))
	}
	b.WriteString("If you did not ask for this, you can ignore this email.\n")

	return Message{To: task.Email, Subject: "Reset your password", Body: b.String()}
}

func taskFromNotice(n auth.PasswordResetNotice) SendPasswordResetEmailTask {
	return SendPasswordResetEmailTask{
		UserID:      n.UserID,
		Email:       n.Email,
		DisplayName: n.DisplayName,
		Link:        n.Link,
		ExpiresAt:   n.ExpiresAt,
	}
}

// QueueNotifier hands reset links to the task queue.
type QueueNotifier struct {
	client *Client
}

func NewQueueNotifier(client *Client) *QueueNotifier {
	return &QueueNotifier{client: client}
}

func (n *QueueNotifier) NotifyPasswordReset(ctx context.Context, notice auth.PasswordResetNotice) error {
	if _, err := n.client.Add(taskFromNotice(notice)).Ctx(ctx).Save(); err != nil {
		return fmt.Errorf("queue reset email: %w", err)
	}
	return nil
}

// DirectNotifier sends reset links inline. It is used when the task queue is
// disabled.
type DirectNotifier struct {
	mailer Mailer
}

func NewDirectNotifier(mailer Mailer) *DirectNotifier {
	return &DirectNotifier{mailer: mailer}
}

func (n *DirectNotifier) NotifyPasswordReset(ctx context.Context, notice auth.PasswordResetNotice) error {
	return n.mailer.Send(ctx, resetMessage(taskFromNotice(notice)))
}
