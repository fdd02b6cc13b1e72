package consumption

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbon-dashboard/internal/crudapi"
)

// memoryAPI is an in-process stand-in for the remote CRUD API.
type memoryAPI struct {
	mu    sync.Mutex
	items map[string]json.RawMessage
	calls []crudapi.Call
}

func newMemoryAPI() *memoryAPI {
	return &memoryAPI{items: map[string]json.RawMessage{}}
}

func (m *memoryAPI) Send(_ context.Context, call crudapi.Call) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)

	notFound := func() ([]byte, error) {
		return json.Marshal(crudapi.Envelope{Error: &crudapi.ErrorBody{Code: "not_found", Message: "no such item"}})
	}
	ok := func(data any) ([]byte, error) {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		return json.Marshal(crudapi.Envelope{Success: true, Data: raw})
	}

	switch call.Method {
	case http.MethodPost:
		var r Record
		if err := json.Unmarshal(call.Body, &r); err != nil {
			return nil, err
		}
		m.items[r.ID] = call.Body
		return ok(r)
	case http.MethodGet:
		if call.ID != "" {
			item, found := m.items[call.ID]
			if !found {
				return notFound()
			}
			return ok(item)
		}
		keys := make([]string, 0, len(m.items))
		for k := range m.items {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		list := make([]json.RawMessage, 0, len(keys))
		for _, k := range keys {
			list = append(list, m.items[k])
		}
		return ok(list)
	case http.MethodPut:
		if _, found := m.items[call.ID]; !found {
			return notFound()
		}
		m.items[call.ID] = call.Body
		return ok(nil)
	case http.MethodDelete:
		if _, found := m.items[call.ID]; !found {
			return notFound()
		}
		delete(m.items, call.ID)
		return nil, nil
	}
	return nil, &crudapi.APIError{Kind: crudapi.ErrorKindValidation, Operation: call.Operation}
}

func TestRemoteStore_CRUD(t *testing.T) {
	ctx := context.Background()
	api := newMemoryAPI()
	s := NewRemoteStore(crudapi.NewClientWithTransport(api, zerolog.Nop()))
	assert.Equal(t, "remote", s.Driver())

	r := storedRecord("r1", "plant-a", day(2026, 1, 1))
	require.NoError(t, s.Create(ctx, r))
	assert.Equal(t, RemoteResource, api.calls[0].Resource)

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, r.Data, got.Data)
	assert.True(t, r.PeriodStart.Equal(got.PeriodStart))

	r.Notes = "corrected"
	require.NoError(t, s.Update(ctx, r))
	got, err = s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "corrected", got.Notes)

	require.NoError(t, s.Delete(ctx, "r1"))
	_, err = s.Get(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "r1"), ErrNotFound)
}

func TestRemoteStore_ListFiltersLocally(t *testing.T) {
	ctx := context.Background()
	api := newMemoryAPI()
	s := NewRemoteStore(crudapi.NewClientWithTransport(api, zerolog.Nop()))

	require.NoError(t, s.Create(ctx, storedRecord("a", "plant-a", day(2026, 1, 1))))
	require.NoError(t, s.Create(ctx, storedRecord("b", "plant-b", day(2026, 2, 1))))
	require.NoError(t, s.Create(ctx, storedRecord("c", "plant-a", day(2026, 3, 1))))

	got, err := s.List(ctx, Filter{EntityID: "plant-a", Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	last := api.calls[len(api.calls)-1]
	assert.Equal(t, "plant-a", last.Query.Get("entityId"))
	assert.Equal(t, "1", last.Query.Get("limit"))
}
