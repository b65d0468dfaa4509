// Package logbook ties the record store, image pool, and derived views
// together behind one session object.
package logbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/logbook/internal/backup"
	"github.com/kalambet/logbook/internal/csvcodec"
	"github.com/kalambet/logbook/internal/imagepool"
	"github.com/kalambet/logbook/internal/query"
	"github.com/kalambet/logbook/internal/stats"
	"github.com/kalambet/logbook/internal/storage"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options configures a Service. Zero values pick defaults.
type Options struct {
	Orders stats.Orders
	Clock  Clock
	Logger *slog.Logger
}

// Service owns all mutable state of a logbook session. Handlers receive it
// explicitly; nothing is cached between calls.
type Service struct {
	store  *storage.Store
	pool   *imagepool.Pool
	clock  Clock
	loc    *time.Location
	orders stats.Orders
	logger *slog.Logger
}

// New creates a Service over store.
func New(store *storage.Store, opts Options) *Service {
	s := &Service{
		store:  store,
		pool:   imagepool.New(store),
		clock:  opts.Clock,
		loc:    store.Location(),
		orders: opts.Orders,
		logger: opts.Logger,
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Location returns the location dates are derived in.
func (s *Service) Location() *time.Location { return s.loc }

// Orders returns the configured canonical orders.
func (s *Service) Orders() stats.Orders { return s.orders }

// Add stores a new record and returns it as persisted.
func (s *Service) Add(ctx context.Context, in storage.RecordInput) (storage.Record, error) {
	id, err := s.store.Add(ctx, in)
	if err != nil {
		return storage.Record{}, err
	}
	s.logger.Debug("record added", "id", id)
	return s.store.Get(ctx, id)
}

// History returns the records matching preds, newest first.
func (s *Service) History(ctx context.Context, preds query.Predicates) ([]storage.Record, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := query.Apply(all, preds)
	query.SortNewestFirst(out)
	return out, nil
}

// Range returns the records dated within [from, to], oldest first.
// Either bound may be empty.
func (s *Service) Range(ctx context.Context, from, to string) ([]storage.Record, error) {
	if err := query.ValidateDate(from); err != nil {
		return nil, err
	}
	if err := query.ValidateDate(to); err != nil {
		return nil, err
	}
	return s.store.ListByDateRange(ctx, from, to)
}

// Delete removes a record. Deleting a missing id succeeds.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.logger.Debug("record deleted", "id", id)
	return nil
}

// Stats summarizes every stored record.
func (s *Service) Stats(ctx context.Context) (stats.Summary, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.Summarize(all, s.clock.Now().In(s.loc), s.orders), nil
}

// ExportCSV renders every record as CSV, oldest first.
func (s *Service) ExportCSV(ctx context.Context) (string, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return "", err
	}
	return csvcodec.Export(all, s.loc), nil
}

// ExportBackup returns the full-state backup document.
func (s *Service) ExportBackup(ctx context.Context) ([]byte, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	query.SortOldestFirst(all)
	pool, err := s.pool.Raw(ctx)
	if err != nil {
		return nil, err
	}
	data, err := backup.Marshal(backup.Export(all, pool, s.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("encoding backup: %w", err)
	}
	return data, nil
}

// ImportBackup applies a backup document on top of the current state.
func (s *Service) ImportBackup(ctx context.Context, data []byte) (backup.Result, error) {
	return backup.Import(ctx, data, importSink{s}, s.logger)
}

type importSink struct{ s *Service }

func (k importSink) Add(ctx context.Context, in storage.RecordInput) (int64, error) {
	return k.s.store.Add(ctx, in)
}

func (k importSink) ReplaceImagePool(ctx context.Context, raw json.RawMessage) error {
	return k.s.pool.Replace(ctx, raw)
}

func (k importSink) Location() *time.Location { return k.s.loc }

// Images returns the image pool.
func (s *Service) Images(ctx context.Context) ([]imagepool.Entry, error) {
	return s.pool.Load(ctx)
}

// SetImages replaces the image pool with raw, an array of URL strings or
// entry objects.
func (s *Service) SetImages(ctx context.Context, raw json.RawMessage) error {
	if _, err := imagepool.DecodeEntries(raw); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrNotArray, err)
	}
	return s.pool.Replace(ctx, raw)
}

// AddImage appends an entry unless its normalized URL is already present.
func (s *Service) AddImage(ctx context.Context, e imagepool.Entry) (imagepool.Entry, bool, error) {
	return s.pool.Add(ctx, e)
}

// RemoveImage drops entries with the given URL.
func (s *Service) RemoveImage(ctx context.Context, url string) (bool, error) {
	return s.pool.Remove(ctx, url)
}

// ErrNotConfirmed is returned by Wipe when the caller did not confirm.
var ErrNotConfirmed = errors.New("wipe not confirmed")

// Wipe irreversibly removes all records and the image pool.
func (s *Service) Wipe(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := s.store.ClearAll(ctx); err != nil {
		return err
	}
	s.logger.Warn("all data wiped")
	return nil
}
