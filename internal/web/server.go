// Package web exposes notes, daily practice, analysis, subscriptions and push
// registrations as an authenticated JSON API.
package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/memomind/internal/billing"
	"github.com/conorfennell/memomind/internal/domain"
	"github.com/conorfennell/memomind/internal/practice"
)

// NoteStore is the owner-scoped note CRUD the API serves.
type NoteStore interface {
	CreateNote(ctx context.Context, note domain.Note) (*domain.Note, error)
	FindNote(ctx context.Context, key domain.NoteKey) (*domain.Note, error)
	ListNotes(ctx context.Context, ownerID string) ([]domain.Note, error)
	UpdateNote(ctx context.Context, key domain.NoteKey, update domain.NoteUpdate) (*domain.Note, error)
	DeleteNote(ctx context.Context, key domain.NoteKey) error
}

// Practice selects daily batches, reports status and records reviews.
type Practice interface {
	DailyBatch(ctx context.Context, ownerID string) ([]domain.Note, error)
	Status(ctx context.Context, ownerID string) (practice.Status, error)
	Review(ctx context.Context, key domain.NoteKey) (*domain.Note, error)
}

// Analyzer produces AI feedback for a note.
type Analyzer interface {
	Analyze(ctx context.Context, title, understanding string) (*domain.Analysis, error)
}

// Billing manages the entitlement of a user.
type Billing interface {
	Status(ctx context.Context, userID string) (billing.Status, error)
	IsPremium(ctx context.Context, userID string) (bool, error)
	CreateCheckout(ctx context.Context, userID string, planType domain.PlanType) (billing.Checkout, error)
	VerifyAndActivate(ctx context.Context, userID string, proof billing.PaymentProof, planType domain.PlanType) error
}

// PushStore keeps browser push registrations.
type PushStore interface {
	UpsertPushSubscription(ctx context.Context, userID, endpoint string, raw json.RawMessage) (*domain.PushSubscription, error)
	GetPushSubscription(ctx context.Context, userID string) (*domain.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, userID string) error
}

// Limiter decides whether a keyed request may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// Deps holds the collaborators of the server. Limiter and Events are optional.
type Deps struct {
	Notes    NoteStore
	Practice Practice
	Analyzer Analyzer
	Billing  Billing
	Push     PushStore
	Auth     TokenVerifier
	Limiter  Limiter
	Events   EventTracker
}

// Options tune server behaviour.
type Options struct {
	// RequirePremium restricts /analyze to premium users.
	RequirePremium     bool
	CORSAllowedOrigins []string
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	notes    NoteStore
	practice Practice
	analyzer Analyzer
	billing  Billing
	push     PushStore
	auth     TokenVerifier
	limiter  Limiter
	events   EventTracker
	opts     Options

	validate *validator.Validate
	router   *http.ServeMux
	handler  http.Handler
}

// NewServer creates and configures a new server.
func NewServer(deps Deps, opts Options) *Server {
	s := &Server{
		notes:    deps.Notes,
		practice: deps.Practice,
		analyzer: deps.Analyzer,
		billing:  deps.Billing,
		push:     deps.Push,
		auth:     deps.Auth,
		limiter:  deps.Limiter,
		events:   deps.Events,
		opts:     opts,
		validate: newValidator(),
		router:   http.NewServeMux(),
	}
	if s.events == nil {
		s.events = LogTracker{}
	}
	s.routes()

	var h http.Handler = s.router
	h = WithCORS(opts.CORSAllowedOrigins)(h)
	h = WithSecurityHeaders(h)
	h = WithRequestLog(h)
	h = WithRequestID(h)
	s.handler = h
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth())

	s.router.HandleFunc("GET /notes", s.withUser(s.handleListNotes()))
	s.router.HandleFunc("POST /notes", s.withUser(s.handleCreateNote()))
	s.router.HandleFunc("GET /notes/{id}", s.withUser(s.handleGetNote()))
	s.router.HandleFunc("PUT /notes/{id}", s.withUser(s.handleUpdateNote()))
	s.router.HandleFunc("PATCH /notes/{id}", s.withUser(s.handleReviewNote()))
	s.router.HandleFunc("DELETE /notes/{id}", s.withUser(s.handleDeleteNote()))

	s.router.HandleFunc("GET /practice/daily", s.withUser(s.handleDailyPractice()))
	s.router.HandleFunc("GET /practice/status", s.withUser(s.handlePracticeStatus()))

	s.router.HandleFunc("POST /analyze", s.withUser(s.handleAnalyze()))

	s.router.HandleFunc("POST /subscription/create", s.withUser(s.handleCreateSubscription()))
	s.router.HandleFunc("POST /subscription/verify", s.withUser(s.handleVerifySubscription()))
	s.router.HandleFunc("GET /subscription/status", s.withUser(s.handleSubscriptionStatus()))

	s.router.HandleFunc("GET /notifications/subscribe", s.withUser(s.handleGetPushSubscription()))
	s.router.HandleFunc("POST /notifications/subscribe", s.withUser(s.handleSavePushSubscription()))
	s.router.HandleFunc("DELETE /notifications/subscribe", s.withUser(s.handleDeletePushSubscription()))
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
