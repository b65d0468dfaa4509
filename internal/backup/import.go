package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/logbook/internal/imagepool"
	"github.com/kalambet/logbook/internal/storage"
)

// Sink receives imported state.
type Sink interface {
	Add(ctx context.Context, in storage.RecordInput) (int64, error)
	ReplaceImagePool(ctx context.Context, raw json.RawMessage) error
	Location() *time.Location
}

// Result reports what an import did.
type Result struct {
	Batch             string   `json:"batch"`
	Applied           int      `json:"applied"`
	Skipped           int      `json:"skipped"`
	Warnings          []string `json:"warnings"`
	ImagePoolReplaced bool     `json:"imagePoolReplaced"`
}

// Import applies a backup document to sink. Sessions are re-added as new
// records; their original ids are ignored. Sessions without a usable timestamp
// are skipped with a warning. A present imageUrls array replaces the pool;
// items that are neither a URL nor an entry with a url are dropped with a
// warning.
//
// A document that is not a JSON object fails with ErrMalformedBackup before
// anything is written. A store failure after at least one session was written
// fails with ErrPartialImport and the partial Result.
func Import(ctx context.Context, data []byte, sink Sink, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res := Result{Batch: uuid.NewString(), Warnings: []string{}}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return res, ErrMalformedBackup
	}
	logger = logger.With("batch", res.Batch)

	warn := func(msg string, args ...any) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(msg, args...))
		logger.Warn("backup import", "warning", res.Warnings[len(res.Warnings)-1])
	}

	loc := sink.Location()
	if loc == nil {
		loc = time.Local
	}

	if raw, ok := top["sessions"]; ok {
		items, isArray := asArray(raw)
		if !isArray {
			warn("sessions is not an array, ignored")
		}
		for i, item := range items {
			in, err := decodeSession(item, loc)
			if err != nil {
				res.Skipped++
				warn("session %d skipped: %v", i, err)
				continue
			}
			if _, err := sink.Add(ctx, in); err != nil {
				if errors.Is(err, storage.ErrInvalidTimestamp) {
					res.Skipped++
					warn("session %d skipped: %v", i, err)
					continue
				}
				return res, failure(res, fmt.Errorf("adding session %d: %w", i, err))
			}
			res.Applied++
		}
	}

	if raw, ok := top["imageUrls"]; ok {
		if _, isArray := asArray(raw); isArray {
			pool, dropped, err := imagepool.Usable(raw)
			if err != nil {
				return res, failure(res, fmt.Errorf("reading image pool: %w", err))
			}
			for _, i := range dropped {
				warn("image %d skipped: not a URL or entry with a url", i)
			}
			if err := sink.ReplaceImagePool(ctx, pool); err != nil {
				return res, failure(res, fmt.Errorf("replacing image pool: %w", err))
			}
			res.ImagePoolReplaced = true
		} else {
			warn("imageUrls is not an array, ignored")
		}
	}

	logger.Info("backup imported", "applied", res.Applied, "skipped", res.Skipped,
		"image_pool_replaced", res.ImagePoolReplaced)
	return res, nil
}

func failure(res Result, err error) error {
	if res.Applied > 0 {
		return fmt.Errorf("%w: %d sessions written: %w", ErrPartialImport, res.Applied, err)
	}
	return err
}

func asArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

// Field names accepted for each attribute, canonical first.
var (
	timestampFields    = []string{"occurredAt", "createdAt"}
	categoryFields     = []string{"category", "content"}
	genderFields       = []string{"genderTag", "gender"}
	explicitnessFields = []string{"explicitnessTag", "porn"}
	moistureFields     = []string{"moistureTag", "wet"}
	personFields       = []string{"personName", "name"}
)

func decodeSession(raw json.RawMessage, loc *time.Location) (storage.RecordInput, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return storage.RecordInput{}, errors.New("not an object")
	}

	var (
		at       time.Time
		found    bool
		firstErr error
	)
	for _, name := range timestampFields {
		v, ok := fields[name]
		if !ok || isNull(v) {
			continue
		}
		t, err := parseTimestamp(v, loc)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", name, err)
			}
			continue
		}
		at, found = t, true
		break
	}
	if !found {
		if firstErr != nil {
			return storage.RecordInput{}, firstErr
		}
		return storage.RecordInput{}, errors.New("missing occurredAt")
	}
	if !storage.ValidInstant(at) {
		return storage.RecordInput{}, storage.ErrInvalidTimestamp
	}

	return storage.RecordInput{
		OccurredAt:      at,
		Category:        stringField(fields, categoryFields),
		GenderTag:       stringField(fields, genderFields),
		ExplicitnessTag: stringField(fields, explicitnessFields),
		MoistureTag:     stringField(fields, moistureFields),
		PersonName:      strings.TrimSpace(stringField(fields, personFields)),
	}, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// stringField returns the first present string value among names.
// Non-string scalars are rendered in their JSON form.
func stringField(fields map[string]json.RawMessage, names []string) string {
	for _, name := range names {
		v, ok := fields[name]
		if !ok || isNull(v) {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
		return strings.TrimSpace(string(v))
	}
	return ""
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	storage.DateKeyLayout,
}

// parseTimestamp accepts epoch milliseconds (number or numeric string),
// RFC 3339, or a local date-time or date.
func parseTimestamp(v json.RawMessage, loc *time.Location) (time.Time, error) {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return time.Time{}, err
	}

	switch val := x.(type) {
	case json.Number:
		n = val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, errors.New("empty timestamp")
		}
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			n = json.Number(s)
			break
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, nil
		}
		for _, layout := range localLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", x)
	}

	ms, err := n.Float64()
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(ms)).In(loc), nil
}
