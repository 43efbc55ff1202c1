package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/config"
	"github.com/dukerupert/chorewheel/internal/handler"
	"github.com/dukerupert/chorewheel/internal/metrics"
	"github.com/dukerupert/chorewheel/internal/middleware"
	"github.com/dukerupert/chorewheel/internal/recurrence"
	"github.com/dukerupert/chorewheel/internal/store"
	ws "github.com/dukerupert/chorewheel/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	metrics       *metrics.Engine
	familyMemberH *handler.FamilyMemberHandler
	choreH        *handler.ChoreHandler
	occurrenceH   *handler.OccurrenceHandler
	memberStore   *store.FamilyMemberStore
	materializer  *chore.Materializer
	rateLimiter   *middleware.RateLimiter
	today         func() time.Time
	logger        *slog.Logger
}

// New builds the stores, the occurrence engine and the HTTP handlers on db.
func New(db *sql.DB, cfg config.Config, m *metrics.Engine, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	loc := cfg.Location()
	today := func() time.Time { return recurrence.Day(time.Now().In(loc)) }

	familyMemberStore := store.NewFamilyMemberStore(db)
	choreStore := store.NewChoreStore(db)
	occurrenceStore := store.NewOccurrenceStore(db)
	ledgerStore := store.NewLedgerStore(db)

	opts := chore.DefaultOptions()
	opts.SkipConsumesTurn = cfg.SkipConsumesTurn
	opts.Workers = cfg.Workers
	opts.Notifier = hub
	opts.Recorder = m

	materializer := chore.NewMaterializer(choreStore, occurrenceStore, opts, logger.With("component", "materializer"))
	lifecycle := chore.NewLifecycle(choreStore, occurrenceStore, ledgerStore, auth.AssigneeOrParent, opts, logger.With("component", "lifecycle"))

	return &Server{
		db:            db,
		hub:           hub,
		metrics:       m,
		familyMemberH: handler.NewFamilyMemberHandler(familyMemberStore, ledgerStore, logger.With("component", "family_member")),
		choreH:        handler.NewChoreHandler(choreStore, familyMemberStore, hub, today, logger.With("component", "chore")),
		occurrenceH:   handler.NewOccurrenceHandler(materializer, lifecycle, occurrenceStore, today, cfg.MaxWindowDays, logger.With("component", "occurrence")),
		memberStore:   familyMemberStore,
		materializer:  materializer,
		rateLimiter:   middleware.NewRateLimiter(),
		today:         today,
		logger:        logger,
	}
}

// Materializer returns the engine used by the rolling-window scheduler.
func (s *Server) Materializer() *chore.Materializer {
	return s.materializer
}

// Today returns the current household date.
func (s *Server) Today() time.Time {
	return s.today()
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", s.metrics.Handler())
	outerMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	apiMux := http.NewServeMux()
	s.registerAPIRoutes(apiMux)

	actor := middleware.Actor(s.memberStore, s.rateLimiter)
	outerMux.Handle("/api/", s.rateLimited(actor(apiMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	keyFunc := func(r *http.Request) string {
		return "api:" + middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, 300, time.Minute)(next)
}

// parentOrBootstrap requires a parent actor once any member exists. The
// very first member can be created anonymously.
func (s *Server) parentOrBootstrap(next http.HandlerFunc) http.Handler {
	guarded := middleware.RequireParent(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		members, err := s.memberStore.List(r.Context())
		if err != nil {
			s.logger.Error("list family members", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if len(members) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		guarded.ServeHTTP(w, r)
	})
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	parent := func(h http.HandlerFunc) http.Handler { return middleware.RequireParent(h) }
	actor := func(h http.HandlerFunc) http.Handler { return middleware.RequireActor(h) }

	// Family members
	mux.HandleFunc("GET /api/family-members", s.familyMemberH.List)
	mux.Handle("POST /api/family-members", s.parentOrBootstrap(s.familyMemberH.Create))
	mux.Handle("PUT /api/family-members/{id}", parent(s.familyMemberH.Update))
	mux.Handle("DELETE /api/family-members/{id}", parent(s.familyMemberH.Delete))
	mux.Handle("POST /api/family-members/{id}/pin", parent(s.familyMemberH.SetPIN))
	mux.Handle("DELETE /api/family-members/{id}/pin", parent(s.familyMemberH.ClearPIN))
	mux.HandleFunc("GET /api/family-members/{id}/points", s.familyMemberH.Points)
	mux.HandleFunc("GET /api/family-members/{id}/occurrences", s.occurrenceH.ListForMember)
	mux.HandleFunc("GET /api/leaderboard", s.familyMemberH.Leaderboard)

	// Recurring chore definitions
	mux.HandleFunc("GET /api/categories", s.choreH.ListCategories)
	mux.HandleFunc("GET /api/recurring-chores", s.choreH.List)
	mux.Handle("POST /api/recurring-chores", parent(s.choreH.Create))
	mux.HandleFunc("GET /api/recurring-chores/{id}", s.choreH.Get)
	mux.Handle("PUT /api/recurring-chores/{id}", parent(s.choreH.Update))
	mux.Handle("DELETE /api/recurring-chores/{id}", parent(s.choreH.Delete))
	mux.Handle("POST /api/recurring-chores/{id}/deactivate", parent(s.choreH.Deactivate))

	// Occurrences
	mux.HandleFunc("GET /api/occurrences", s.occurrenceH.List)
	mux.HandleFunc("GET /api/occurrences/{id}", s.occurrenceH.Get)
	mux.Handle("POST /api/occurrences/{id}/complete", actor(s.occurrenceH.Complete))
	mux.Handle("POST /api/occurrences/{id}/skip", actor(s.occurrenceH.Skip))
	mux.Handle("POST /api/occurrences/{id}/unskip", parent(s.occurrenceH.Unskip))
}

// RunCleanup prunes rate limiter state until ctx is done.
func (s *Server) RunCleanup(ctx context.Context) {
	s.rateLimiter.RunCleanup(ctx, 5*time.Minute)
}
