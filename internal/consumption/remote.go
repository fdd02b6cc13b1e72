package consumption

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ecoledger/carbon-dashboard/internal/crudapi"
)

// RemoteResource is the remote API collection holding consumption records.
const RemoteResource = "consumption_records"

// RemoteStore keeps records in the remote CRUD API.
type RemoteStore struct {
	client *crudapi.Client
}

// NewRemoteStore returns a store backed by client.
func NewRemoteStore(client *crudapi.Client) *RemoteStore {
	return &RemoteStore{client: client}
}

func (s *RemoteStore) Driver() string { return "remote" }

// Create posts a new record.
func (s *RemoteStore) Create(ctx context.Context, r Record) error {
	if err := s.client.Create(ctx, RemoteResource, r, nil); err != nil {
		return fmt.Errorf("create remote record %s: %w", r.ID, err)
	}
	return nil
}

// Get fetches one record.
func (s *RemoteStore) Get(ctx context.Context, id string) (Record, error) {
	var r Record
	if err := s.client.Get(ctx, RemoteResource, id, &r); err != nil {
		return Record{}, remoteErr(id, err)
	}
	return r, nil
}

// List fetches matching records. The remote API applies entity, date and
// limit filters server-side; the result is filtered again locally in case a
// deployment ignores some of them.
func (s *RemoteStore) List(ctx context.Context, f Filter) ([]Record, error) {
	q := url.Values{}
	if f.EntityID != "" {
		q.Set("entityId", f.EntityID)
	}
	if !f.From.IsZero() {
		q.Set("from", formatDate(f.From))
	}
	if !f.To.IsZero() {
		q.Set("to", formatDate(f.To))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}

	var all []Record
	if err := s.client.List(ctx, RemoteResource, q, &all); err != nil {
		return nil, fmt.Errorf("list remote records: %w", err)
	}

	out := all[:0]
	for _, r := range all {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Update replaces a record.
func (s *RemoteStore) Update(ctx context.Context, r Record) error {
	if err := s.client.Update(ctx, RemoteResource, r.ID, r, nil); err != nil {
		return remoteErr(r.ID, err)
	}
	return nil
}

// Delete removes a record.
func (s *RemoteStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, RemoteResource, id); err != nil {
		return remoteErr(id, err)
	}
	return nil
}

func remoteErr(id string, err error) error {
	if crudapi.IsNotFound(err) {
		return fmt.Errorf("%w: %s: %v", ErrNotFound, id, err)
	}
	return fmt.Errorf("remote record %s: %w", id, err)
}
