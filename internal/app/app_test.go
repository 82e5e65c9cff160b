package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coldcall/internal/config"
	"coldcall/internal/console"
	"coldcall/internal/store"
)

func fakeProviders(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/call/phone", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer vapi-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc123"}`))
	})
	mux.HandleFunc("/call/abc123", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ended","endedReason":"assistant-ended-call","analysis":{"summary":"Customer interested, schedule demo"}}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Positive"}}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) config.Config {
	return config.Config{
		VAPIAPIKey:        "vapi-key",
		AssistantID:       "assistant",
		PhoneNumberID:     "number",
		VAPIBaseURL:       baseURL,
		ClassifierBackend: config.BackendOpenAI,
		ClassifierModel:   "gpt-4o-mini",
		OpenAIAPIKey:      "sk-test",
		OpenAIBaseURL:     baseURL,
		DBPath:            filepath.Join(t.TempDir(), "calls.db"),
		HTTPPort:          ":0",
		HTTPTimeout:       5 * time.Second,
		PollInterval:      10 * time.Millisecond,
		PollMaxAttempts:   3,
	}
}

func TestEndToEndOverHTTP(t *testing.T) {
	srv := fakeProviders(t)
	a, err := New(context.Background(), testConfig(t, srv.URL))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/calls", strings.NewReader(`{"name":"Ada","email":"ada@example.com","phone":"+15550100"}`))
	rr := httptest.NewRecorder()
	a.Mux().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Outcome console.Outcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "Positive", resp.Outcome.Category)
	require.NotEmpty(t, resp.Outcome.CycleID)

	rows, err := a.Store().ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, store.CallRecord{
		ID:      rows[0].ID,
		Name:    "Ada",
		Email:   "ada@example.com",
		Phone:   "+15550100",
		Status:  "Positive",
		Summary: rows[0].Summary,
	}, rows[0])
	require.Equal(t, "Customer interested, schedule demo", *rows[0].Summary)
}

func TestCallPublishesProgress(t *testing.T) {
	srv := fakeProviders(t)
	a, err := New(context.Background(), testConfig(t, srv.URL))
	require.NoError(t, err)

	sub, unsub := a.Bus().Subscribe()
	defer unsub()
	out, err := a.Call(context.Background(), console.Contact{Name: "Ada", Email: "a@b.c", Phone: "+1"}, nil)
	require.NoError(t, err)
	require.True(t, out.Persisted)

	ev := <-sub
	require.Equal(t, out.CycleID, ev.CycleID)
	require.Equal(t, "Call started! Call ID: abc123", ev.Message)
}

func TestCycleTimeoutCoversPollBudget(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.PollInterval = 5 * time.Second
	cfg.PollMaxAttempts = 30
	cfg.HTTPTimeout = time.Second
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, 145*time.Second+32*time.Second, a.CycleTimeout())
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := fakeProviders(t)
	cfg := testConfig(t, srv.URL)
	cfg.HTTPPort = "127.0.0.1:0"
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}
