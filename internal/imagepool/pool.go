// Package imagepool keeps the user-supplied list of image URLs.
package imagepool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ListKey is the list store key the pool is persisted under.
const ListKey = "image_pool"

// ErrEmptyURL is returned by Add when the entry has no URL.
var ErrEmptyURL = errors.New("image url is empty")

// Entry is one image in the pool.
type Entry struct {
	URL         string   `json:"url"`
	DisplayName string   `json:"displayName,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UnmarshalJSON accepts either a bare URL string or an entry object.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = Entry{URL: s}
		return nil
	}
	type plain Entry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding image entry: %w", err)
	}
	*e = Entry(p)
	return nil
}

// DecodeEntries decodes a JSON array whose items are URL strings or entry objects.
func DecodeEntries(raw json.RawMessage) ([]Entry, error) {
	entries := []Entry{}
	if len(raw) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Usable keeps the items of raw that decode to an entry with a URL. When every
// item is usable raw is returned unchanged; otherwise the kept items are
// re-joined and the indexes of the dropped ones are reported. raw must be a
// JSON array.
func Usable(raw json.RawMessage) (json.RawMessage, []int, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, err
	}
	kept := make([]json.RawMessage, 0, len(items))
	var dropped []int
	for i, item := range items {
		var e Entry
		if err := json.Unmarshal(item, &e); err != nil || strings.TrimSpace(e.URL) == "" {
			dropped = append(dropped, i)
			continue
		}
		kept = append(kept, item)
	}
	if len(dropped) == 0 {
		return raw, nil, nil
	}
	body, err := json.Marshal(kept)
	if err != nil {
		return nil, nil, err
	}
	return body, dropped, nil
}

// ListStore reads and writes whole JSON arrays by name.
type ListStore interface {
	GetList(ctx context.Context, name string) (json.RawMessage, error)
	PutList(ctx context.Context, name string, body json.RawMessage) error
}

// Pool edits the image list. Partial updates happen in memory and the whole
// list is rewritten.
type Pool struct {
	store ListStore
}

// New returns a Pool persisted in store.
func New(store ListStore) *Pool {
	return &Pool{store: store}
}

// Raw returns the stored array as-is.
func (p *Pool) Raw(ctx context.Context) (json.RawMessage, error) {
	return p.store.GetList(ctx, ListKey)
}

// Replace stores raw wholesale. raw must be a JSON array.
func (p *Pool) Replace(ctx context.Context, raw json.RawMessage) error {
	return p.store.PutList(ctx, ListKey, raw)
}

// Load returns the decoded entries. Items without a URL are left out.
func (p *Pool) Load(ctx context.Context) ([]Entry, error) {
	raw, err := p.Raw(ctx)
	if err != nil {
		return nil, err
	}
	usable, _, err := Usable(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding image pool: %w", err)
	}
	entries, err := DecodeEntries(usable)
	if err != nil {
		return nil, fmt.Errorf("decoding image pool: %w", err)
	}
	return entries, nil
}

// Save replaces the pool with entries.
func (p *Pool) Save(ctx context.Context, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	body, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding image pool: %w", err)
	}
	return p.Replace(ctx, body)
}

// Add normalizes e.URL and appends e unless an entry with that URL exists.
// It returns the stored entry and whether it was newly added.
func (p *Pool) Add(ctx context.Context, e Entry) (Entry, bool, error) {
	e.URL = Normalize(e.URL)
	if e.URL == "" {
		return Entry{}, false, ErrEmptyURL
	}
	e.DisplayName = strings.TrimSpace(e.DisplayName)

	entries, err := p.Load(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	for _, existing := range entries {
		if existing.URL == e.URL {
			return existing, false, nil
		}
	}
	if err := p.Save(ctx, append(entries, e)); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Remove deletes every entry whose URL matches url as given or normalized.
// It reports whether anything was removed.
func (p *Pool) Remove(ctx context.Context, url string) (bool, error) {
	entries, err := p.Load(ctx)
	if err != nil {
		return false, err
	}
	norm := Normalize(url)
	kept := entries[:0]
	for _, e := range entries {
		if e.URL == url || e.URL == norm {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == len(entries) {
		return false, nil
	}
	return true, p.Save(ctx, kept)
}
