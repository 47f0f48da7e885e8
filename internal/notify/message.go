package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/kausik11/taskify/internal/model"
)

// DefaultTemplate is used when a rule carries no template of its own.
const DefaultTemplate = `Reminder: "{{.Title}}" is due {{.Due}}{{if .Assignee}} (assigned to {{.Assignee}}){{end}}.`

type Message struct {
	InstanceID string
	RuleID     string
	Channel    model.Channel
	To         string
	Body       string
}

// MessageData is what rule templates can reference.
type MessageData struct {
	Title      string
	Assignee   string
	Priority   string
	Department string
	Branch     string
	Due        string
	DueAt      time.Time
	DaysBefore int
}

func Render(tpl string, data MessageData) (string, error) {
	if strings.TrimSpace(tpl) == "" {
		tpl = DefaultTemplate
	}
	t, err := template.New("message").Option("missingkey=error").Parse(tpl)
	if err != nil {
		return "", fmt.Errorf("notify: parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("notify: render template: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.Info("notification", "channel", msg.Channel, "to", msg.To, "instance", msg.InstanceID, "rule", msg.RuleID, "body", msg.Body)
	return nil
}
