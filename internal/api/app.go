package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/logbook/internal/backup"
	"github.com/kalambet/logbook/internal/imagepool"
	"github.com/kalambet/logbook/internal/logbook"
	"github.com/kalambet/logbook/internal/logging"
	"github.com/kalambet/logbook/internal/query"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxBackupBodySize = 32 << 20 // 32MB

type AppDeps struct {
	Service *logbook.Service
	Token   string
	Logger  *slog.Logger // optional; slog.Default() when nil
}

// NewAppHandler returns the HTTP API. Every route except /health requires the
// bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(logging.Middleware(deps.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/records", handleAddRecord(deps))
		r.Get("/records", handleListRecords(deps))
		r.Get("/records/range", handleRangeRecords(deps))
		r.Delete("/records/{id}", handleDeleteRecord(deps))

		r.Get("/stats", handleStats(deps))
		r.Get("/export/csv", handleExportCSV(deps))
		r.Get("/backup", handleExportBackup(deps))
		r.Post("/backup", handleImportBackup(deps))

		r.Get("/images", handleListImages(deps))
		r.Put("/images", handleReplaceImages(deps))
		r.Post("/images", handleAddImage(deps))
		r.Delete("/images", handleRemoveImage(deps))

		r.Delete("/data", handleWipe(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleAddRecord(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req logbook.EntryInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		in, err := deps.Service.Input(req)
		if err != nil {
			serviceError(w, err, "add record")
			return
		}
		rec, err := deps.Service.Add(r.Context(), in)
		if err != nil {
			serviceError(w, err, "add record")
			return
		}

		writeJSON(w, http.StatusCreated, logbook.EntryFrom(rec, deps.Service.Location()))
	}
}

func handleListRecords(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		preds := query.PredicatesFromValues(r.URL.Query())
		if err := query.ValidateDate(preds[query.FieldDate]); err != nil {
			serviceError(w, err, "list records")
			return
		}

		records, err := deps.Service.History(r.Context(), preds)
		if err != nil {
			serviceError(w, err, "list records")
			return
		}
		if limit := parseIntParam(r, "limit", 0, 0); limit > 0 && len(records) > limit {
			records = records[:limit]
		}

		writeJSON(w, http.StatusOK, logbook.Entries(records, deps.Service.Location()))
	}
}

func handleRangeRecords(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		records, err := deps.Service.Range(r.Context(), q.Get("from"), q.Get("to"))
		if err != nil {
			serviceError(w, err, "list records")
			return
		}
		writeJSON(w, http.StatusOK, logbook.Entries(records, deps.Service.Location()))
	}
}

func handleDeleteRecord(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid record id")
			return
		}
		if err := deps.Service.Delete(r.Context(), id); err != nil {
			serviceError(w, err, "delete record")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := deps.Service.Stats(r.Context())
		if err != nil {
			serviceError(w, err, "compute stats")
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func handleExportCSV(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := deps.Service.ExportCSV(r.Context())
		if err != nil {
			serviceError(w, err, "export csv")
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="logbook.csv"`)
		io.WriteString(w, out)
	}
}

func handleExportBackup(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := deps.Service.ExportBackup(r.Context())
		if err != nil {
			serviceError(w, err, "export backup")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="logbook-backup.json"`)
		w.Write(data)
	}
}

func handleImportBackup(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBackupBodySize)
		defer r.Body.Close()

		data, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading request body: %v", err)
			return
		}

		res, err := deps.Service.ImportBackup(r.Context(), data)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, res)
		case errors.Is(err, backup.ErrMalformedBackup):
			serviceError(w, err, "import backup")
		default:
			// Partial or failed import: report what was written alongside the error.
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error": map[string]any{
					"message": err.Error(),
					"type":    "api_error",
				},
				"result": res,
			})
		}
	}
}

func handleListImages(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := deps.Service.Images(r.Context())
		if err != nil {
			serviceError(w, err, "list images")
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleReplaceImages(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading request body: %v", err)
			return
		}
		if err := deps.Service.SetImages(r.Context(), raw); err != nil {
			serviceError(w, err, "replace images")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "replaced"})
	}
}

func handleAddImage(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var e imagepool.Entry
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		stored, added, err := deps.Service.AddImage(r.Context(), e)
		if err != nil {
			serviceError(w, err, "add image")
			return
		}
		code := http.StatusOK
		if added {
			code = http.StatusCreated
		}
		writeJSON(w, code, map[string]any{"entry": stored, "added": added})
	}
}

func handleRemoveImage(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if url == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}
		removed, err := deps.Service.RemoveImage(r.Context(), url)
		if err != nil {
			serviceError(w, err, "remove image")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
	}
}

func handleWipe(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		confirmed := r.URL.Query().Get("confirm") == "true"
		if err := deps.Service.Wipe(r.Context(), confirmed); err != nil {
			serviceError(w, err, "wipe data")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "wiped"})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
