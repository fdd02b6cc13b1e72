package consumption

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
	"github.com/ecoledger/carbon-dashboard/internal/metrics"
	"github.com/ecoledger/carbon-dashboard/internal/publish"
)

// Assessment is a record together with its calculated emissions.
type Assessment struct {
	Record        Record                `json:"record"`
	Result        carbon.EmissionResult `json:"result"`
	Activities    carbon.ActivityResult `json:"activities"`
	Scopes        carbon.ScopeTotals    `json:"scopes"`
	Equivalencies []carbon.Equivalency  `json:"equivalencies,omitempty"`
}

// Service validates, persists and assesses consumption records.
type Service struct {
	store     Store
	table     *carbon.FactorTable
	calc      *carbon.Memo
	publisher publish.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewService wires a service. publisher and m may be nil.
func NewService(store Store, table *carbon.FactorTable, publisher publish.Publisher, m *metrics.Metrics, logger zerolog.Logger) *Service {
	if publisher == nil {
		publisher = publish.NopPublisher{}
	}
	return &Service{
		store:     store,
		table:     table,
		calc:      carbon.NewMemo(table),
		publisher: publisher,
		metrics:   m,
		logger:    logger.With().Str("component", "consumption").Str("driver", store.Driver()).Logger(),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Table returns the factor table records are assessed with.
func (s *Service) Table() *carbon.FactorTable {
	return s.table
}

// Create validates r, assigns an ID and timestamps, saves it and returns its
// assessment.
func (s *Service) Create(ctx context.Context, r Record) (Assessment, error) {
	r.PeriodStart = normalizePeriod(r.PeriodStart)
	r.PeriodEnd = normalizePeriod(r.PeriodEnd)
	if err := Validate(r, s.table); err != nil {
		return Assessment{}, err
	}

	now := s.now().UTC()
	r.ID = s.newID()
	r.CreatedAt = now
	r.UpdatedAt = now

	a, err := s.assess(r)
	if err != nil {
		return Assessment{}, err
	}
	if err := s.store.Create(ctx, r); err != nil {
		return Assessment{}, err
	}

	s.logger.Info().
		Str("record_id", r.ID).
		Str("entity_id", r.EntityID).
		Float64("total_kg", a.Scopes.Total).
		Msg("record created")
	s.metrics.RecordSaved(s.store.Driver(), a.Scopes.Scope1, a.Scopes.Scope2, a.Scopes.Scope3)
	s.announce("created", a)
	return a, nil
}

// Get returns a stored record.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.store.Get(ctx, id)
}

// List returns stored records matching f, with its bounds taken as days.
func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	return s.store.List(ctx, f.Normalize())
}

// Update replaces the mutable fields of record r.ID, keeping its creation
// time.
func (s *Service) Update(ctx context.Context, r Record) (Assessment, error) {
	existing, err := s.store.Get(ctx, r.ID)
	if err != nil {
		return Assessment{}, err
	}

	r.PeriodStart = normalizePeriod(r.PeriodStart)
	r.PeriodEnd = normalizePeriod(r.PeriodEnd)
	if err := Validate(r, s.table); err != nil {
		return Assessment{}, err
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = s.now().UTC()

	a, err := s.assess(r)
	if err != nil {
		return Assessment{}, err
	}
	if err := s.store.Update(ctx, r); err != nil {
		return Assessment{}, err
	}

	s.logger.Info().Str("record_id", r.ID).Msg("record updated")
	s.metrics.RecordSaved(s.store.Driver(), a.Scopes.Scope1, a.Scopes.Scope2, a.Scopes.Scope3)
	s.announce("updated", a)
	return a, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("record_id", id).Msg("record deleted")
	s.announce("deleted", Assessment{Record: existing})
	return nil
}

// Assess loads a record and calculates its emissions.
func (s *Service) Assess(ctx context.Context, id string) (Assessment, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return Assessment{}, err
	}
	return s.assess(r)
}

// Summary aggregates every record matching f.
func (s *Service) Summary(ctx context.Context, f Filter) (Summary, error) {
	records, err := s.store.List(ctx, f.Normalize())
	if err != nil {
		return Summary{}, err
	}
	return Summarize(records, s.table)
}

func (s *Service) assess(r Record) (Assessment, error) {
	result := s.calc.Calculate(r.Data)
	activities, err := carbon.CalculateActivities(r.Activities, s.table)
	if err != nil {
		// Stored records may predate the current factor table.
		return Assessment{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	scopes := carbon.ScopeBreakdown(result).Merge(activities.Scopes)
	s.metrics.Calculation()
	return Assessment{
		Record:        r,
		Result:        result,
		Activities:    activities,
		Scopes:        scopes,
		Equivalencies: carbon.Equivalencies(scopes.Total),
	}, nil
}

// announce publishes an event. A broker failure never fails the save.
func (s *Service) announce(action string, a Assessment) {
	err := s.publisher.Publish(publish.Event{
		Timestamp:   s.now().UTC(),
		Action:      action,
		RecordID:    a.Record.ID,
		EntityID:    a.Record.EntityID,
		PeriodStart: a.Record.PeriodStart,
		PeriodEnd:   a.Record.PeriodEnd,
		Result:      a.Result,
		Scopes:      a.Scopes,
	})
	if err != nil {
		s.metrics.PublishFailed()
		s.logger.Warn().Err(err).Str("record_id", a.Record.ID).Str("action", action).Msg("failed to publish assessment")
	}
}

// IsValidation reports whether err is a record validation failure and
// returns its field details when available.
func IsValidation(err error) ([]FieldError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Fields, true
	}
	return nil, errors.Is(err, ErrInvalidRecord)
}
