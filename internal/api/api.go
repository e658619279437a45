package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"kassa_panel/internal/cache"
	"kassa_panel/internal/config"
	"kassa_panel/internal/db"
	"kassa_panel/internal/matcher"
	"kassa_panel/internal/security"
	"kassa_panel/internal/tgbot"
	"kassa_panel/internal/ws"
)

type API struct {
	Cfg      config.Config
	DB       *db.DB
	Tg       *tgbot.Bot
	Settings *cache.Settings
	Hub      *ws.Hub
	Guard    *security.Guard
	Matcher  *matcher.Matcher
	Log      *zap.SugaredLogger
}

type envelope struct {
	OK    bool        `json:"ok"`
	Error string      `json:"error,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Admin-Token"},
		MaxAge:           600,
		AllowCredentials: false,
	}))
	r.Use(a.securityMiddleware)

	r.Get("/health", a.health)
	r.Post("/generate-qr", a.generateQR)
	r.Post("/payments/create", a.paymentCreate)

	r.Route("/admin", func(r chi.Router) {
		r.Use(a.adminOnly)
		r.Get("/requests", a.adminRequests)
		r.Post("/requests/process", a.adminRequestProcess)
		r.Get("/requisites", a.adminRequisites)
		r.Post("/requisites", a.adminRequisiteCreate)
		r.Post("/requisites/activate", a.adminRequisiteActivate)
		r.Post("/requisites/delete", a.adminRequisiteDelete)
		r.Post("/settings", a.adminSettingSet)
		r.Post("/broadcast", a.adminBroadcast)
		// Bank webhook bridge posts here; it holds the same token.
		r.Post("/payments/incoming", a.paymentIncoming)
		r.Get("/ws", a.Hub.Serve)
	})

	return r
}

func (a *API) allowedOrigins() []string {
	var out []string
	for _, o := range a.Cfg.CORSOrigins {
		out = append(out, strings.TrimRight(o, "/"))
	}
	if u := strings.TrimSpace(a.Cfg.WebappURL); u != "" {
		out = append(out, strings.TrimRight(u, "/"))
	}
	if u := strings.TrimSpace(a.Cfg.PublicBaseURL); u != "" {
		out = append(out, strings.TrimRight(u, "/"))
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (a *API) securityMiddleware(next http.Handler) http.Handler {
	if a.Guard == nil || !a.Guard.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := a.Guard.ClientIP(r)
		if a.Guard.IsBanned(ip) {
			writeJSON(w, http.StatusTooManyRequests, envelope{OK: false, Error: "too many requests"})
			return
		}

		// Body size guard for JSON endpoints (keeps memory stable under spam).
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			if n := a.Guard.MaxBodyBytes(); n > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
		}

		path := strings.ToLower(strings.TrimSpace(r.URL.Path))
		if strings.HasSuffix(path, "/health") || path == "/healthz" {
			if !a.Guard.AllowPublic(ip) {
				writeJSON(w, http.StatusTooManyRequests, envelope{OK: false, Error: "rate limited"})
				return
			}
		} else if !a.Guard.AllowAPI(ip) {
			writeJSON(w, http.StatusTooManyRequests, envelope{OK: false, Error: "rate limited"})
			return
		}

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == http.StatusUnauthorized {
			a.Guard.RecordAuthFail(ip)
		}
	})
}

// adminOnly gates the dashboard surface on a shared token. Session auth is
// the Next.js layer's business; the API only ever sees the service token.
func (a *API) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-Admin-Token"))
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("token")) // websocket clients
		}
		if a.Cfg.AdminToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(a.Cfg.AdminToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, envelope{OK: false, Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbOK := true
	var one int
	if err := a.DB.Pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil || one != 1 {
		dbOK = false
	}

	data := map[string]any{
		"service":     "kassa_panel",
		"ts":          time.Now().Unix(),
		"db_ok":       dbOK,
		"bot_enabled": a.Tg != nil,
		"dashboards":  a.Hub.Count(),
	}

	status := http.StatusOK
	ok := true
	if !dbOK {
		status = http.StatusServiceUnavailable
		ok = false
	}
	writeJSON(w, status, envelope{OK: ok, Data: data})
}

// activeRequisite retries transient lookup failures with a short backoff
// before declaring the panel misconfigured. A missing requisite is final
// immediately.
func (a *API) activeRequisite(ctx context.Context) (db.Requisite, error) {
	backoff := []time.Duration{0, 200 * time.Millisecond, 400 * time.Millisecond, 600 * time.Millisecond}
	var lastErr error
	for _, wait := range backoff {
		if wait > 0 {
			select {
			case <-ctx.Done():
				return db.Requisite{}, ctx.Err()
			case <-time.After(wait):
			}
		}
		req, err := a.DB.GetActiveRequisite(ctx)
		if err == nil {
			return req, nil
		}
		if errors.Is(err, db.ErrNoActiveRequisite) {
			return db.Requisite{}, err
		}
		lastErr = err
		a.Log.Warnf("requisite lookup retry: %v", err)
	}
	return db.Requisite{}, lastErr
}
