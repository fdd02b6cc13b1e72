package consumption

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
	"github.com/ecoledger/carbon-dashboard/internal/crudapi"
	"github.com/ecoledger/carbon-dashboard/internal/metrics"
	"github.com/ecoledger/carbon-dashboard/internal/publish"
)

type serviceFixture struct {
	svc  *Service
	pub  *publish.FakePublisher
	m    *metrics.Metrics
	logs *bytes.Buffer
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	var logs bytes.Buffer
	pub := publish.NewFakePublisher()
	m := metrics.New()
	svc := NewService(newSQLiteStore(t), carbon.DefaultFactorTable(), pub, m, zerolog.New(&logs))

	clock := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	n := 0
	svc.newID = func() string {
		n++
		return "rec-" + string(rune('0'+n))
	}
	return serviceFixture{svc: svc, pub: pub, m: m, logs: &logs}
}

func TestService_CreateAssessesAndPublishes(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	in := validRecord()
	in.PeriodStart = time.Date(2026, 1, 1, 13, 45, 0, 0, time.UTC)
	in.Activities = []carbon.ActivityEntry{{Type: "natural_gas", Quantity: 100}}

	a, err := f.svc.Create(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, "rec-1", a.Record.ID)
	assert.Equal(t, day(2026, 1, 1), a.Record.PeriodStart)
	assert.False(t, a.Record.CreatedAt.IsZero())
	assert.Equal(t, a.Record.CreatedAt, a.Record.UpdatedAt)

	assert.Equal(t, 1573.0, a.Result.TotalEmissions)
	assert.InDelta(t, 1150+202, a.Scopes.Scope1, 1e-9)
	assert.Equal(t, 400.0, a.Scopes.Scope2)
	assert.InDelta(t, 23, a.Scopes.Scope3, 1e-9)
	assert.InDelta(t, 1775, a.Scopes.Total, 1e-9)
	assert.NotEmpty(t, a.Equivalencies)

	stored, err := f.svc.Get(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, a.Record, stored)

	events := f.pub.Published()
	require.Len(t, events, 1)
	assert.Equal(t, "created", events[0].Action)
	assert.Equal(t, "plant-a", events[0].EntityID)
	assert.Equal(t, a.Scopes, events[0].Scopes)

	expected := `
# HELP carbon_dashboard_records_saved_total Consumption records saved, by store driver.
# TYPE carbon_dashboard_records_saved_total counter
carbon_dashboard_records_saved_total{driver="sqlite"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.m.Registry, strings.NewReader(expected), "carbon_dashboard_records_saved_total"))
}

func TestService_CreateRejectsInvalid(t *testing.T) {
	f := newServiceFixture(t)

	in := validRecord()
	in.Data.Waste = -5
	_, err := f.svc.Create(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRecord))
	assert.Empty(t, f.pub.Published())

	list, err := f.svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_PublishFailureDoesNotFailSave(t *testing.T) {
	f := newServiceFixture(t)
	f.pub.PublishError = errors.New("broker unreachable")

	a, err := f.svc.Create(context.Background(), validRecord())
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), a.Record.ID)
	assert.NoError(t, err)
	assert.Contains(t, f.logs.String(), "failed to publish assessment")
	assert.Contains(t, f.logs.String(), "broker unreachable")
}

func TestService_UpdateKeepsCreatedAt(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, validRecord())
	require.NoError(t, err)

	changed := created.Record
	changed.Data.Electricity = 2000
	changed.CreatedAt = time.Time{}
	updated, err := f.svc.Update(ctx, changed)
	require.NoError(t, err)

	assert.Equal(t, created.Record.CreatedAt, updated.Record.CreatedAt)
	assert.True(t, updated.Record.UpdatedAt.After(created.Record.UpdatedAt))
	assert.Equal(t, 800.0, updated.Result.ElectricityEmissions)

	_, err = f.svc.Update(ctx, Record{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	events := f.pub.Published()
	require.Len(t, events, 2)
	assert.Equal(t, "updated", events[1].Action)
}

func TestService_DeleteAndAssess(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, validRecord())
	require.NoError(t, err)

	a, err := f.svc.Assess(ctx, created.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Result, a.Result)

	require.NoError(t, f.svc.Delete(ctx, created.Record.ID))
	_, err = f.svc.Assess(ctx, created.Record.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, created.Record.ID), ErrNotFound)

	events := f.pub.Published()
	require.Len(t, events, 2)
	assert.Equal(t, "deleted", events[1].Action)
}

func TestService_Summary(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	for _, start := range []time.Time{day(2026, 1, 1), day(2026, 2, 1)} {
		r := validRecord()
		r.PeriodStart = start
		r.PeriodEnd = start.AddDate(0, 1, -1)
		_, err := f.svc.Create(ctx, r)
		require.NoError(t, err)
	}

	s, err := f.svc.Summary(ctx, Filter{EntityID: "plant-a"})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Records)
	assert.InDelta(t, 3146.0, s.Emissions.TotalEmissions, 1e-9)
	assert.Len(t, s.Monthly, 2)
}

func TestService_ListBoundsAreDays(t *testing.T) {
	stores := map[string]Store{
		"sqlite": newSQLiteStore(t),
		"remote": NewRemoteStore(crudapi.NewClientWithTransport(newMemoryAPI(), zerolog.Nop())),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, r := range []Record{
				storedRecord("a", "plant-a", day(2026, 1, 1)),
				storedRecord("b", "plant-a", day(2026, 2, 1)),
				storedRecord("c", "plant-a", day(2026, 3, 1)),
			} {
				require.NoError(t, store.Create(ctx, r))
			}
			svc := NewService(store, carbon.DefaultFactorTable(), publish.NopPublisher{}, nil, zerolog.Nop())

			// Mid-day bounds select the same days on every backend.
			got, err := svc.List(ctx, Filter{
				From: day(2026, 2, 1).Add(10 * time.Hour),
				To:   day(2026, 3, 1).Add(10 * time.Hour),
			})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "b", got[0].ID)
		})
	}
}
