// Package publish announces calculated assessments to downstream consumers.
package publish

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
)

// DefaultTopic is the MQTT topic for assessment events.
const DefaultTopic = "carbon/emissions/assessments"

// Event is an assessment of one saved consumption record.
type Event struct {
	Timestamp   time.Time
	Action      string // "created", "updated" or "deleted"
	RecordID    string
	EntityID    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Result      carbon.EmissionResult
	Scopes      carbon.ScopeTotals
}

// Publisher publishes assessment events.
type Publisher interface {
	// Publish sends an event. Failures are reported but must not crash the caller.
	Publish(event Event) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the broker connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Payload is the JSON body of an assessment message.
type Payload struct {
	Assessment AssessmentPayload `json:"assessment"`
}

// AssessmentPayload contains the event details.
type AssessmentPayload struct {
	Timestamp   string                `json:"timestamp"`
	Action      string                `json:"action"`
	RecordID    string                `json:"record_id"`
	EntityID    string                `json:"entity_id"`
	PeriodStart string                `json:"period_start"`
	PeriodEnd   string                `json:"period_end"`
	Emissions   carbon.EmissionResult `json:"emissions"`
	Scopes      carbon.ScopeTotals    `json:"scopes"`
}

// FormatPayload creates the JSON payload for an event.
func FormatPayload(event Event) ([]byte, error) {
	return json.Marshal(Payload{
		Assessment: AssessmentPayload{
			Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
			Action:      event.Action,
			RecordID:    event.RecordID,
			EntityID:    event.EntityID,
			PeriodStart: event.PeriodStart.UTC().Format(time.DateOnly),
			PeriodEnd:   event.PeriodEnd.UTC().Format(time.DateOnly),
			Emissions:   event.Result,
			Scopes:      event.Scopes,
		},
	})
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }
func (NopPublisher) Close() error        { return nil }
