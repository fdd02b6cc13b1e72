package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbon-dashboard/internal/crudapi"
)

func TestFilename(t *testing.T) {
	at := time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, "monthly-board-pack-20260201.xlsx", Filename("Monthly Board Pack", at, FormatXLSX))
	assert.Equal(t, "report-20260201.txt", Filename("  ", at, FormatText))
	assert.Equal(t, "q1-plant-a-20260201.json", Filename("Q1 / plant_a", at, FormatJSON))
}

func TestNewMessage(t *testing.T) {
	s := validSchedule()
	s.ID = "sch-1"
	r := sampleReport(t)

	msg := NewMessage(s, r, []byte("body"))
	assert.Equal(t, "sch-1", msg.ScheduleID)
	assert.Equal(t, "Monthly board pack: plant-a (2026-01-01 to 2026-01-31)", msg.Subject)
	assert.Len(t, msg.Recipients, 2)
	assert.Equal(t, FormatXLSX.ContentType(), msg.ContentType)
	assert.Equal(t, "monthly-board-pack-20260201.xlsx", msg.Filename)
}

func TestLogSender_WritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	var logs bytes.Buffer
	s := &LogSender{Dir: dir, Logger: zerolog.New(&logs)}

	msg := Message{ScheduleID: "sch-1", Subject: "weekly", Filename: "weekly-20260201.txt", Body: []byte("hello")}
	require.NoError(t, s.Send(context.Background(), msg))

	data, err := os.ReadFile(filepath.Join(dir, msg.Filename))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Contains(t, logs.String(), `"message":"report delivered"`)
	assert.Contains(t, logs.String(), `"schedule_id":"sch-1"`)
}

type captureTransport struct {
	calls []crudapi.Call
	err   error
}

func (c *captureTransport) Send(_ context.Context, call crudapi.Call) ([]byte, error) {
	c.calls = append(c.calls, call)
	if c.err != nil {
		return nil, c.err
	}
	return []byte(`{"success":true,"data":{}}`), nil
}

func TestRemoteSender(t *testing.T) {
	transport := &captureTransport{}
	s := NewRemoteSender(crudapi.NewClientWithTransport(transport, zerolog.Nop()))

	msg := Message{ScheduleID: "sch-1", Format: FormatText, Body: []byte("report body")}
	require.NoError(t, s.Send(context.Background(), msg))

	require.Len(t, transport.calls, 1)
	call := transport.calls[0]
	assert.Equal(t, RemoteResource, call.Resource)
	assert.Equal(t, "POST", call.Method)

	var sent Message
	require.NoError(t, json.Unmarshal(call.Body, &sent))
	assert.Equal(t, []byte("report body"), sent.Body)

	transport.err = &crudapi.APIError{Kind: crudapi.ErrorKindUpstream, Operation: "Create"}
	err := s.Send(context.Background(), msg)
	assert.True(t, crudapi.IsKind(err, crudapi.ErrorKindUpstream))
}
