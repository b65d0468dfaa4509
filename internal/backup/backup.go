// Package backup reads and writes the full-state JSON backup document.
package backup

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/kalambet/logbook/internal/storage"
)

// Version is the document version written by Export.
const Version = 1

var (
	// ErrMalformedBackup is returned when the document is not a JSON object.
	// Nothing is written.
	ErrMalformedBackup = errors.New("malformed backup")

	// ErrPartialImport is returned when a store failure stops an import after
	// some sessions were written. The accompanying Result says how many.
	ErrPartialImport = errors.New("partial import")
)

// Session is the backup form of a record.
type Session struct {
	ID              int64  `json:"id"`
	OccurredAt      int64  `json:"occurredAt"`
	DateKey         string `json:"dateKey"`
	Category        string `json:"category"`
	GenderTag       string `json:"genderTag"`
	ExplicitnessTag string `json:"explicitnessTag"`
	MoistureTag     string `json:"moistureTag"`
	PersonName      string `json:"personName"`
}

// Document is the backup file layout.
type Document struct {
	Version    int             `json:"version"`
	ExportedAt string          `json:"exportedAt"`
	Sessions   []Session       `json:"sessions"`
	ImageURLs  json.RawMessage `json:"imageUrls"`
}

// Export builds a document from records and the raw image pool array.
func Export(records []storage.Record, imagePool json.RawMessage, now time.Time) Document {
	if len(imagePool) == 0 {
		imagePool = json.RawMessage("[]")
	}
	doc := Document{
		Version:    Version,
		ExportedAt: now.UTC().Format(time.RFC3339),
		Sessions:   make([]Session, 0, len(records)),
		ImageURLs:  imagePool,
	}
	for _, r := range records {
		doc.Sessions = append(doc.Sessions, Session{
			ID:              r.ID,
			OccurredAt:      r.OccurredAt.UnixMilli(),
			DateKey:         r.DateKey,
			Category:        r.Category,
			GenderTag:       r.GenderTag,
			ExplicitnessTag: r.ExplicitnessTag,
			MoistureTag:     r.MoistureTag,
			PersonName:      r.PersonName,
		})
	}
	return doc
}

// Marshal encodes doc as indented JSON.
func Marshal(doc Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
