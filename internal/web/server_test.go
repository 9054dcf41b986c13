package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/memomind/internal/analysis"
	"github.com/conorfennell/memomind/internal/billing"
	"github.com/conorfennell/memomind/internal/domain"
	"github.com/conorfennell/memomind/internal/practice"
	"github.com/conorfennell/memomind/internal/storage"
)

// tokens maps bearer tokens to user ids.
type tokens map[string]string

func (t tokens) Subject(token string) (string, error) {
	if id, ok := t[token]; ok {
		return id, nil
	}
	return "", errors.New("unknown token")
}

type fakeAnalyzer struct {
	result *domain.Analysis
	err    error
	calls  int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _, _ string) (*domain.Analysis, error) {
	f.calls++
	return f.result, f.err
}

type fakeBilling struct {
	premium   bool
	status    billing.Status
	checkout  billing.Checkout
	verifyErr error
	err       error

	proof    billing.PaymentProof
	planType domain.PlanType
}

func (f *fakeBilling) Status(context.Context, string) (billing.Status, error) {
	return f.status, f.err
}

func (f *fakeBilling) IsPremium(context.Context, string) (bool, error) {
	return f.premium, f.err
}

func (f *fakeBilling) CreateCheckout(_ context.Context, _ string, planType domain.PlanType) (billing.Checkout, error) {
	f.planType = planType
	return f.checkout, f.err
}

func (f *fakeBilling) VerifyAndActivate(_ context.Context, _ string, proof billing.PaymentProof, planType domain.PlanType) error {
	f.proof = proof
	f.planType = planType
	return f.verifyErr
}

type denyAll struct{ keys []string }

func (d *denyAll) Allow(_ context.Context, key string) bool {
	d.keys = append(d.keys, key)
	return false
}

type recordedEvent struct {
	userID string
	event  string
}

type eventRecorder struct{ events []recordedEvent }

func (e *eventRecorder) Track(_ context.Context, userID, event string, _ map[string]any) {
	e.events = append(e.events, recordedEvent{userID: userID, event: event})
}

type testEnv struct {
	server   *Server
	db       *storage.DB
	analyzer *fakeAnalyzer
	billing  *fakeBilling
	events   *eventRecorder
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:       db,
		analyzer: &fakeAnalyzer{},
		billing:  &fakeBilling{},
		events:   &eventRecorder{},
	}
	env.server = NewServer(Deps{
		Notes:    db,
		Practice: practice.NewEngine(db, practice.WithRand(rand.New(rand.NewPCG(1, 2)))),
		Analyzer: env.analyzer,
		Billing:  env.billing,
		Push:     db,
		Auth:     tokens{"token-a": "user-a", "token-b": "user-b"},
		Events:   env.events,
	}, opts)
	return env
}

func (env *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[errorBody](t, rec)
	assert.Equal(t, code, body.Code)
	assert.NotEmpty(t, body.Error)
	assert.Equal(t, rec.Header().Get(requestIDHeader), body.RequestID)
}

func createNote(t *testing.T, env *testEnv, token, title string) domain.Note {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/notes", token,
		`{"title":"`+title+`","understanding":"`+title+` explained"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Note](t, rec)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, Options{})
	rec := env.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t, Options{})
	routes := []struct{ method, path string }{
		{http.MethodGet, "/notes"},
		{http.MethodPost, "/notes"},
		{http.MethodGet, "/notes/abc"},
		{http.MethodPut, "/notes/abc"},
		{http.MethodPatch, "/notes/abc"},
		{http.MethodDelete, "/notes/abc"},
		{http.MethodGet, "/practice/daily"},
		{http.MethodGet, "/practice/status"},
		{http.MethodPost, "/analyze"},
		{http.MethodPost, "/subscription/create"},
		{http.MethodPost, "/subscription/verify"},
		{http.MethodGet, "/subscription/status"},
		{http.MethodGet, "/notifications/subscribe"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			assertErrorCode(t, env.do(t, rt.method, rt.path, "", ""), http.StatusUnauthorized, CodeUnauthorized)
			assertErrorCode(t, env.do(t, rt.method, rt.path, "forged", ""), http.StatusUnauthorized, CodeUnauthorized)
		})
	}
}

func TestNoteLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})
	note := createNote(t, env, "token-a", "Goroutines")
	assert.Equal(t, "user-a", note.OwnerID)
	assert.Equal(t, 0, note.ReviewCount)
	assert.Nil(t, note.LastReviewedAt)
	assert.Equal(t, []recordedEvent{{userID: "user-a", event: EventNoteCreated}}, env.events.events)

	rec := env.do(t, http.MethodGet, "/notes/"+note.ID, "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Goroutines", decode[domain.Note](t, rec).Title)

	rec = env.do(t, http.MethodPut, "/notes/"+note.ID, "token-a",
		`{"title":"Goroutines v2","understanding":"Multiplexed onto threads."}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Goroutines v2", decode[domain.Note](t, rec).Title)

	rec = env.do(t, http.MethodGet, "/notes", "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Note](t, rec), 1)

	rec = env.do(t, http.MethodDelete, "/notes/"+note.ID, "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Note deleted successfully"}`, rec.Body.String())

	assertErrorCode(t, env.do(t, http.MethodGet, "/notes/"+note.ID, "token-a", ""), http.StatusNotFound, CodeNoteNotFound)
}

func TestListNotesEmptyIsArray(t *testing.T) {
	env := newTestEnv(t, Options{})
	rec := env.do(t, http.MethodGet, "/notes", "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCreateNoteValidation(t *testing.T) {
	env := newTestEnv(t, Options{})
	testCases := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "invalid json", body: `{"title":`},
		{name: "missing title", body: `{"understanding":"x"}`},
		{name: "blank understanding", body: `{"title":"x","understanding":"   "}`},
		{name: "invalid analysis", body: `{"title":"x","understanding":"y","analysis":{"difficulty":"Trivial"}}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assertErrorCode(t, env.do(t, http.MethodPost, "/notes", "token-a", tc.body), http.StatusBadRequest, CodeValidation)
		})
	}

	notes, err := env.db.ListNotes(context.Background(), "user-a")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestUpdateNoteAnalysisSemantics(t *testing.T) {
	env := newTestEnv(t, Options{})
	rec := env.do(t, http.MethodPost, "/notes", "token-a",
		`{"title":"Maps","understanding":"Hash tables","analysis":{"difficulty":"Easy","accuracy_score":80}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	note := decode[domain.Note](t, rec)
	require.NotNil(t, note.Analysis)

	// Absent key keeps the analysis.
	rec = env.do(t, http.MethodPut, "/notes/"+note.ID, "token-a", `{"title":"Maps","understanding":"Unordered"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[domain.Note](t, rec)
	require.NotNil(t, updated.Analysis)
	assert.Equal(t, 80, updated.Analysis.AccuracyScore)

	// An object replaces it wholesale.
	rec = env.do(t, http.MethodPut, "/notes/"+note.ID, "token-a",
		`{"title":"Maps","understanding":"Unordered","analysis":{"difficulty":"Hard","accuracy_score":40}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated = decode[domain.Note](t, rec)
	require.NotNil(t, updated.Analysis)
	assert.Equal(t, domain.DifficultyHard, updated.Analysis.Difficulty)
	assert.Equal(t, 40, updated.Analysis.AccuracyScore)

	// Null clears it.
	rec = env.do(t, http.MethodPut, "/notes/"+note.ID, "token-a", `{"title":"Maps","understanding":"Unordered","analysis":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[domain.Note](t, rec).Analysis)

	assertErrorCode(t, env.do(t, http.MethodPut, "/notes/"+note.ID, "token-a",
		`{"title":"Maps","understanding":"Unordered","analysis":{"accuracy_score":101,"difficulty":"Easy"}}`),
		http.StatusBadRequest, CodeValidation)
}

func TestClientAnalysisDifficultyIsNormalized(t *testing.T) {
	env := newTestEnv(t, Options{})
	rec := env.do(t, http.MethodPost, "/notes", "token-a",
		`{"title":"Maps","understanding":"Hash tables","analysis":{"difficulty":"easy","accuracy_score":80}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	note := decode[domain.Note](t, rec)
	require.NotNil(t, note.Analysis)
	assert.Equal(t, domain.DifficultyEasy, note.Analysis.Difficulty)

	rec = env.do(t, http.MethodPut, "/notes/"+note.ID, "token-a",
		`{"title":"Maps","understanding":"Hash tables","analysis":{"difficulty":" HARD ","accuracy_score":60}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.Note](t, rec)
	require.NotNil(t, updated.Analysis)
	assert.Equal(t, domain.DifficultyHard, updated.Analysis.Difficulty)
}

func TestForeignNotesAreNotFound(t *testing.T) {
	env := newTestEnv(t, Options{})
	note := createNote(t, env, "token-a", "Channels")

	requests := []struct{ method, body string }{
		{http.MethodGet, ""},
		{http.MethodPut, `{"title":"stolen","understanding":"stolen"}`},
		{http.MethodPatch, ""},
		{http.MethodDelete, ""},
	}
	for _, req := range requests {
		t.Run(req.method, func(t *testing.T) {
			assertErrorCode(t, env.do(t, req.method, "/notes/"+note.ID, "token-b", req.body), http.StatusNotFound, CodeNoteNotFound)
		})
	}

	stored, err := env.db.FindNote(context.Background(), note.Key())
	require.NoError(t, err)
	assert.Equal(t, "Channels", stored.Title)
	assert.Equal(t, 0, stored.ReviewCount)
	assert.Nil(t, stored.LastReviewedAt)
}

func TestDailyPracticeFlow(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/practice/daily", "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	for _, title := range []string{"Slices", "Maps", "Interfaces"} {
		createNote(t, env, "token-a", title)
	}

	rec = env.do(t, http.MethodGet, "/practice/daily", "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	batch := decode[[]domain.Note](t, rec)
	assert.GreaterOrEqual(t, len(batch), practice.MinBatchSize)
	assert.LessOrEqual(t, len(batch), 3)
	assert.Contains(t, env.events.events, recordedEvent{userID: "user-a", event: EventDailyPracticeStarted})

	rec = env.do(t, http.MethodGet, "/practice/status", "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"completed":false,"reviewedToday":0,"totalNotes":3,"notesNeedingReview":3}`, rec.Body.String())

	for i, note := range batch[:2] {
		rec = env.do(t, http.MethodPatch, "/notes/"+note.ID, "token-a", "")
		require.Equal(t, http.StatusOK, rec.Code, "review %d", i)
		reviewed := decode[domain.Note](t, rec)
		assert.Equal(t, 1, reviewed.ReviewCount)
		assert.NotNil(t, reviewed.LastReviewedAt)
	}

	rec = env.do(t, http.MethodGet, "/practice/status", "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"completed":true,"reviewedToday":2,"totalNotes":3,"notesNeedingReview":1}`, rec.Body.String())

	// Repeated flips keep counting.
	rec = env.do(t, http.MethodPatch, "/notes/"+batch[0].ID, "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[domain.Note](t, rec).ReviewCount)
}

func TestAnalyze(t *testing.T) {
	result := &domain.Analysis{Difficulty: domain.DifficultyMedium, AccuracyScore: 70, SimpleSummary: "ok"}

	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		env.analyzer.result = result
		rec := env.do(t, http.MethodPost, "/analyze", "token-a", `{"title":"Go","understanding":"A language"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, *result, decode[domain.Analysis](t, rec))
		assert.Equal(t, []recordedEvent{{userID: "user-a", event: EventAnalysisUsed}}, env.events.events)
	})

	t.Run("missing input is rejected before calling upstream", func(t *testing.T) {
		env := newTestEnv(t, Options{RequirePremium: true})
		assertErrorCode(t, env.do(t, http.MethodPost, "/analyze", "token-a", `{"title":"Go"}`), http.StatusBadRequest, CodeValidation)
		assert.Zero(t, env.analyzer.calls)
	})

	t.Run("premium required", func(t *testing.T) {
		env := newTestEnv(t, Options{RequirePremium: true})
		assertErrorCode(t, env.do(t, http.MethodPost, "/analyze", "token-a", `{"title":"Go","understanding":"A language"}`),
			http.StatusForbidden, CodePremiumRequired)
		assert.Zero(t, env.analyzer.calls)

		env.billing.premium = true
		env.analyzer.result = result
		rec := env.do(t, http.MethodPost, "/analyze", "token-a", `{"title":"Go","understanding":"A language"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rate limited", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		limiter := &denyAll{}
		env.server.limiter = limiter
		assertErrorCode(t, env.do(t, http.MethodPost, "/analyze", "token-a", `{"title":"Go","understanding":"A language"}`),
			http.StatusTooManyRequests, CodeRateLimited)
		assert.Equal(t, []string{"analyze:user-a"}, limiter.keys)
		assert.Zero(t, env.analyzer.calls)
	})

	failures := []struct {
		name string
		err  error
		code string
	}{
		{name: "not configured", err: &analysis.ConfigurationError{Reason: "missing api key"}, code: CodeAnalysisNotConfigured},
		{name: "upstream", err: &analysis.UpstreamError{Status: 502, Body: "bad gateway"}, code: CodeAnalysisUpstream},
		{name: "malformed", err: &analysis.MalformedResponseError{Content: "nope", Err: errors.New("syntax")}, code: CodeAnalysisMalformed},
		{name: "unexpected", err: errors.New("boom"), code: CodeInternal},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, Options{})
			env.analyzer.err = tc.err
			rec := env.do(t, http.MethodPost, "/analyze", "token-a", `{"title":"Go","understanding":"A language"}`)
			assertErrorCode(t, rec, http.StatusInternalServerError, tc.code)
			assert.Equal(t, 1, env.analyzer.calls)
			assert.Empty(t, env.events.events)
		})
	}
}

func TestSubscriptionEndpoints(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		env.billing.checkout = billing.Checkout{SubscriptionID: "sub_1", KeyID: "rzp_key"}
		rec := env.do(t, http.MethodPost, "/subscription/create", "token-a", `{"planType":"yearly"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"subscriptionId":"sub_1","razorpayKeyId":"rzp_key"}`, rec.Body.String())
		assert.Equal(t, domain.PlanYearly, env.billing.planType)
	})

	t.Run("create rejects unknown plan", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		assertErrorCode(t, env.do(t, http.MethodPost, "/subscription/create", "token-a", `{"planType":"weekly"}`),
			http.StatusBadRequest, CodeValidation)
	})

	t.Run("create without gateway keys", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		env.billing.err = billing.ErrNotConfigured
		assertErrorCode(t, env.do(t, http.MethodPost, "/subscription/create", "token-a", `{"planType":"monthly"}`),
			http.StatusInternalServerError, CodeBillingNotConfigured)
	})

	t.Run("verify", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		rec := env.do(t, http.MethodPost, "/subscription/verify", "token-a",
			`{"razorpay_subscription_id":"sub_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"success":true,"message":"Subscription activated!"}`, rec.Body.String())
		assert.Equal(t, billing.PaymentProof{SubscriptionID: "sub_1", PaymentID: "pay_1", Signature: "sig"}, env.billing.proof)
		assert.Equal(t, domain.PlanType(""), env.billing.planType)
	})

	t.Run("verify with bad signature", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		env.billing.verifyErr = billing.ErrInvalidSignature
		assertErrorCode(t, env.do(t, http.MethodPost, "/subscription/verify", "token-a",
			`{"razorpay_subscription_id":"sub_1","razorpay_payment_id":"pay_1","razorpay_signature":"forged","planType":"monthly"}`),
			http.StatusBadRequest, CodeInvalidSignature)
	})

	t.Run("status", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		env.billing.status = billing.Status{Plan: domain.PlanFree, Status: domain.StatusActive}
		rec := env.do(t, http.MethodGet, "/subscription/status", "token-a", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"isPremium":false,"plan":"free","status":"active","currentPeriodEnd":null}`, rec.Body.String())
	})
}

func TestPushSubscriptionEndpoints(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/notifications/subscribe", "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"subscribed":false}`, rec.Body.String())

	assertErrorCode(t, env.do(t, http.MethodPost, "/notifications/subscribe", "token-a", `{"keys":{}}`),
		http.StatusBadRequest, CodeValidation)

	rec = env.do(t, http.MethodPost, "/notifications/subscribe", "token-a",
		`{"endpoint":"https://push.example.com/abc","keys":{"p256dh":"k","auth":"a"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/notifications/subscribe", "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"subscribed": true,
		"enabled": true,
		"preferredTime": "19:00",
		"notificationTypes": {"dailyReminder": true, "streakWarning": true}
	}`, rec.Body.String())

	rec = env.do(t, http.MethodDelete, "/notifications/subscribe", "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/notifications/subscribe", "token-a", "")
	assert.JSONEq(t, `{"subscribed":false}`, rec.Body.String())
}
