package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"mytube/internal/adapters/http/middleware"
	"mytube/internal/adapters/http/perf"
	"mytube/internal/application/orchestrators"
	"mytube/internal/application/projections"
	"mytube/internal/domain/clip"
)

// Catalog is the clip list the kiosk shows.
type Catalog interface {
	ListClips() []clip.Clip
	Size() int
	Get(idx int) (clip.Clip, bool)
}

// Settings are the presentation and security options from config.
type Settings struct {
	Title          string
	Information    string // markdown
	LimitChoices   []int
	ColorDone      string
	ColorUndone    string
	PINHash        string
	SessionTTL     time.Duration
	CSRFKey        []byte
	TrustedOrigins []string
}

// OutboxControl retries or drops queued notifications.
type OutboxControl interface {
	ProcessSingle(ctx context.Context, entryID string) error
	AbandonEntry(ctx context.Context, entryID string) error
}

// Deps holds everything the handlers need.
type Deps struct {
	Session     orchestrators.SessionDeps
	Catalog     Catalog
	History     projections.WatchHistoryStore // optional
	Guard       orchestrators.ParentalGuardStore
	Outbox      OutboxControl           // optional
	OutboxStore projections.OutboxStore // optional
	Collector   *perf.Collector
	Settings    Settings
}

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 20

// timeNow is a variable for testability.
var timeNow = time.Now

// LoadCSRFKey decodes the hex CSRF secret. An empty value yields a random key
// outside production.
// PRE: keyHex is empty or 64 hex characters
// POST: Returns a 32 byte key
func LoadCSRFKey(keyHex string, production bool) ([]byte, error) {
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return nil, errors.New("MYTUBE_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key, nil
	}
	if production {
		return nil, errors.New("MYTUBE_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate CSRF key: %w", err)
	}
	slog.Warn("csrf_key_random", "hint", "set MYTUBE_CSRF_KEY to keep tokens valid across restarts")
	return key, nil
}

// sessionClock remembers when the current viewing session began.
type sessionClock struct {
	mu      sync.Mutex
	started time.Time
}

func (c *sessionClock) Started() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *sessionClock) Restart(t time.Time) {
	c.mu.Lock()
	c.started = t
	c.mu.Unlock()
}

type server struct {
	deps     Deps
	sessions *middleware.SessionStore
	clock    *sessionClock
	page     *template.Template
	info     template.HTML
}

// NewMux wires HTTP handlers for the kiosk.
// PRE: deps.Session is usable by the session orchestrators; deps.Catalog is set
// POST: Returns the handler with the middleware chain applied
func NewMux(deps Deps) (http.Handler, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if deps.Session.Catalog == nil {
		deps.Session.Catalog = deps.Catalog
	}
	if len(deps.Settings.CSRFKey) != 32 {
		return nil, errors.New("CSRF key must be 32 bytes")
	}
	if deps.Settings.Title == "" {
		deps.Settings.Title = "MyTube"
	}
	if len(deps.Settings.LimitChoices) == 0 {
		deps.Settings.LimitChoices = projections.DefaultLimitChoices
	}

	page, err := parseKioskTemplate()
	if err != nil {
		return nil, err
	}
	s := &server{
		deps:     deps,
		sessions: middleware.NewSessionStore(deps.Settings.SessionTTL),
		clock:    &sessionClock{started: timeNow()},
		page:     page,
		info:     renderMarkdown(deps.Settings.Information),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Apply middleware: Timing -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(deps.Settings.CSRFKey, deps.Settings.TrustedOrigins),
		middleware.Auth(s.sessions),
		middleware.RateLimit(limiter),
		middleware.Timing(deps.Collector),
	), nil
}

func (s *server) registerRoutes(mux *http.ServeMux) {
	parental := middleware.RequireParental(s.deps.Settings.PINHash != "")

	mux.HandleFunc("GET /{$}", s.handleKiosk)
	mux.HandleFunc("GET /healthz", handleHealth)

	mux.HandleFunc("GET /api/session", s.handleGetSession)
	mux.HandleFunc("POST /api/session/select", s.handleSelectClip)
	mux.HandleFunc("POST /api/session/finish", s.handleFinishClip)

	mux.HandleFunc("POST /api/parental/unlock", s.handleUnlock)
	mux.HandleFunc("POST /api/parental/lock", s.handleLock)
	mux.Handle("POST /api/parental/undo", parental(http.HandlerFunc(s.handleUndo)))
	mux.Handle("POST /api/parental/limit", parental(http.HandlerFunc(s.handleSetLimit)))
	mux.Handle("POST /api/parental/reset", parental(http.HandlerFunc(s.handleReset)))
	mux.Handle("GET /api/parental/elapsed", parental(http.HandlerFunc(s.handleElapsed)))
	mux.Handle("GET /api/parental/history", parental(http.HandlerFunc(s.handleHistory)))
	mux.Handle("GET /api/parental/perf", parental(http.HandlerFunc(s.handlePerf)))
	mux.Handle("GET /api/parental/outbox", parental(http.HandlerFunc(s.handleOutbox)))
	mux.Handle("POST /api/parental/outbox/{id}/{action}", parental(http.HandlerFunc(s.handleOutboxAction)))

	mux.HandleFunc("GET /media/clip", s.handleMediaClip)
	mux.HandleFunc("GET /media/thumbnail", s.handleMediaThumbnail)
	mux.HandleFunc("GET /media/info", s.handleMediaInfo)
}
