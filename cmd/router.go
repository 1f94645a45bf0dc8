package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/diligence-dashboard/internal/auth"
	"github.com/sells-group/diligence-dashboard/internal/columns"
	"github.com/sells-group/diligence-dashboard/internal/dashboard"
	"github.com/sells-group/diligence-dashboard/internal/export"
	"github.com/sells-group/diligence-dashboard/internal/overlay"
	"github.com/sells-group/diligence-dashboard/internal/table"
)

const (
	requestIDHeader = "X-Request-ID"
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type routerOptions struct {
	AllowedOrigins []string
	StaticDir      string
	ExportFilename string
}

type ctxKey int

const requestIDKey ctxKey = iota

// buildRouter wires every dashboard command to an HTTP route. Each mutating
// route responds with the new dashboard state.
func buildRouter(d *dashboard.Dashboard, verifier *auth.Verifier, opts routerOptions) http.Handler {
	if opts.ExportFilename == "" {
		opts.ExportFilename = export.DefaultFilename
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/auth", func(w http.ResponseWriter, r *http.Request) {
		var creds auth.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			writeJSON(w, http.StatusBadRequest, auth.Result{Message: "invalid request body"})
			return
		}
		if creds.Username == "" || creds.Password == "" {
			writeJSON(w, http.StatusBadRequest, auth.Result{Message: auth.MsgMissing})
			return
		}
		res, err := verifier.Verify(r.Context(), creds)
		if err != nil {
			zap.L().Error("auth: verify failed", zap.String("request_id", reqID(r.Context())), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, d.State())
		})

		r.Post("/reload", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, d.Reload(r.Context()))
		})

		r.Put("/filters/{column}", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Text string `json:"text"`
			}
			if !decode(w, r, &body) {
				return
			}
			respond(w, r)(d.ApplyFilter(param(r, "column"), body.Text))
		})
		r.Delete("/filters", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, d.ClearFilters())
		})

		r.Put("/sort", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Column    string          `json:"column"`
				Direction table.Direction `json:"direction"`
			}
			if !decode(w, r, &body) {
				return
			}
			if body.Column == "" {
				writeJSON(w, http.StatusOK, d.ClearSort())
				return
			}
			respond(w, r)(d.SetSort(body.Column, body.Direction))
		})
		r.Post("/sort/{column}/toggle", func(w http.ResponseWriter, r *http.Request) {
			respond(w, r)(d.ToggleSort(param(r, "column")))
		})

		r.Put("/overrides/{company}/{field}", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Value string `json:"value"`
			}
			if !decode(w, r, &body) {
				return
			}
			respond(w, r)(d.SetOverride(r.Context(), param(r, "company"), param(r, "field"), body.Value))
		})
		r.Get("/overrides/{company}/{field}/draft", func(w http.ResponseWriter, r *http.Request) {
			draft, err := d.BeginEdit(param(r, "company"), param(r, "field"))
			if err != nil {
				writeError(w, statusFor(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, draft)
		})
		r.Post("/overrides/{company}/{field}/commit", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Text *string `json:"text"`
			}
			if !decode(w, r, &body) {
				return
			}
			if body.Text == nil {
				writeError(w, http.StatusBadRequest, "text is required")
				return
			}
			respond(w, r)(d.CommitEdit(r.Context(), &overlay.Draft{
				Company: param(r, "company"),
				Field:   param(r, "field"),
				Text:    *body.Text,
			}))
		})
		r.Delete("/overrides/{company}/{field}", func(w http.ResponseWriter, r *http.Request) {
			respond(w, r)(d.ClearOverride(r.Context(), param(r, "company"), param(r, "field")))
		})
		r.Delete("/overlay", func(w http.ResponseWriter, r *http.Request) {
			respond(w, r)(d.ClearOverlay(r.Context()))
		})

		r.Post("/verified/{company}/{field}/toggle", func(w http.ResponseWriter, r *http.Request) {
			respond(w, r)(d.ToggleVerified(r.Context(), param(r, "company"), param(r, "field")))
		})

		r.Post("/columns/{key}/toggle", func(w http.ResponseWriter, r *http.Request) {
			respond(w, r)(d.ToggleColumn(r.Context(), param(r, "key")))
		})
		r.Post("/columns/move", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				From *int `json:"from"`
				To   *int `json:"to"`
			}
			if !decode(w, r, &body) {
				return
			}
			if body.From == nil || body.To == nil {
				writeError(w, http.StatusBadRequest, "from and to are required")
				return
			}
			respond(w, r)(d.MoveColumn(r.Context(), *body.From, *body.To))
		})
		r.Post("/columns/reset", func(w http.ResponseWriter, r *http.Request) {
			respond(w, r)(d.ResetColumns(r.Context()))
		})

		r.Get("/export.csv", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentTypeCSV)
			w.Header().Set("Content-Disposition", attachment(opts.ExportFilename))
			if err := export.WriteCSV(w, d.Export()); err != nil {
				zap.L().Error("export: csv failed", zap.String("request_id", reqID(r.Context())), zap.Error(err))
			}
		})
		r.Get("/export.xlsx", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentTypeXLSX)
			w.Header().Set("Content-Disposition", attachment(xlsxName(opts.ExportFilename)))
			if err := export.WriteXLSX(w, d.Export()); err != nil {
				zap.L().Error("export: xlsx failed", zap.String("request_id", reqID(r.Context())), zap.Error(err))
			}
		})
	})

	if opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}

	return r
}

// requestID tags each request with an id, reusing a valid incoming one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func reqID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		zap.L().Debug("http request",
			zap.String("request_id", reqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// param returns a decoded URL parameter. Company names may carry escaped
// slashes, so routing sees the raw form.
func param(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// respond writes the state, or maps the command error to a status.
func respond(w http.ResponseWriter, r *http.Request) func(dashboard.State, error) {
	return func(s dashboard.State, err error) {
		if err == nil {
			writeJSON(w, http.StatusOK, s)
			return
		}
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			zap.L().Error("dashboard command failed",
				zap.String("request_id", reqID(r.Context())),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
		}
		writeError(w, status, err.Error())
	}
}

func statusFor(err error) int {
	switch {
	case eris.Is(err, dashboard.ErrUnknownColumn), eris.Is(err, dashboard.ErrUnknownCompany):
		return http.StatusNotFound
	case eris.Is(err, dashboard.ErrNotEditable), eris.Is(err, columns.ErrOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func attachment(filename string) string {
	return `attachment; filename="` + filename + `"`
}

// xlsxName swaps the extension of the configured export filename.
func xlsxName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		return export.XLSXFilename
	}
	return base + ".xlsx"
}
