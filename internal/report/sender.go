package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecoledger/carbon-dashboard/internal/crudapi"
)

// Message is a rendered report addressed to a schedule's recipients.
type Message struct {
	ScheduleID  string      `json:"scheduleId"`
	Subject     string      `json:"subject"`
	Recipients  []Recipient `json:"recipients"`
	Format      Format      `json:"format"`
	Filename    string      `json:"filename"`
	ContentType string      `json:"contentType"`
	Body        []byte      `json:"body"`
}

// Sender delivers rendered reports.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewMessage addresses a rendered report for schedule s.
func NewMessage(s Schedule, r Report, body []byte) Message {
	return Message{
		ScheduleID:  s.ID,
		Subject:     fmt.Sprintf("%s: %s (%s)", s.Name, r.EntityLabel(), r.PeriodLabel()),
		Recipients:  s.Recipients,
		Format:      s.Format,
		Filename:    Filename(s.Name, r.GeneratedAt, s.Format),
		ContentType: s.Format.ContentType(),
		Body:        body,
	}
}

// Filename builds a filesystem-safe report file name.
func Filename(name string, at time.Time, format Format) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, strings.TrimSpace(name))
	slug = strings.Join(strings.FieldsFunc(slug, func(r rune) bool { return r == '-' }), "-")
	if slug == "" {
		slug = "report"
	}
	return slug + "-" + at.UTC().Format("20060102") + format.Ext()
}

// LogSender logs each delivery and, when Dir is set, writes the rendered
// report there. It is the sender used when no remote delivery API is
// configured.
type LogSender struct {
	Dir    string
	Logger zerolog.Logger
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	event := s.Logger.Info().
		Str("schedule_id", msg.ScheduleID).
		Str("subject", msg.Subject).
		Int("recipients", len(msg.Recipients)).
		Int("bytes", len(msg.Body))

	if s.Dir != "" {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
		path := filepath.Join(s.Dir, msg.Filename)
		if err := os.WriteFile(path, msg.Body, 0o644); err != nil {
			return fmt.Errorf("write report %s: %w", path, err)
		}
		event = event.Str("path", path)
	}
	event.Msg("report delivered")
	return nil
}

// RemoteResource is the remote API collection that accepts report
// deliveries for mailing.
const RemoteResource = "report_deliveries"

// RemoteSender posts deliveries to the remote CRUD API, which mails them.
type RemoteSender struct {
	client *crudapi.Client
}

// NewRemoteSender returns a sender backed by client.
func NewRemoteSender(client *crudapi.Client) *RemoteSender {
	return &RemoteSender{client: client}
}

// Send implements Sender.
func (s *RemoteSender) Send(ctx context.Context, msg Message) error {
	if err := s.client.Create(ctx, RemoteResource, msg, nil); err != nil {
		return fmt.Errorf("post report delivery: %w", err)
	}
	return nil
}
