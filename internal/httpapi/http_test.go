package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"coldcall/internal/console"
	"coldcall/internal/poller"
	"coldcall/internal/provider"
	"coldcall/internal/store"
)

type fakeRunner struct {
	st       *store.Store
	err      error
	contacts []console.Contact
	deadline bool
}

func (f *fakeRunner) Run(ctx context.Context, contact console.Contact, rep console.Reporter) (console.Outcome, error) {
	f.contacts = append(f.contacts, contact)
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		rep.Error("Error: " + f.err.Error())
		return console.Outcome{CycleID: "c1"}, f.err
	}
	summary := "Customer interested, schedule demo"
	rec := &store.CallRecord{Name: contact.Name, Email: contact.Email, Phone: contact.Phone, Status: "Positive", Summary: &summary}
	if _, err := f.st.Insert(ctx, rec); err != nil {
		return console.Outcome{}, err
	}
	rep.Success("Call started! Call ID: abc123")
	return console.Outcome{CycleID: "c1", CallID: "abc123", Status: poller.StatusCompleted, Category: "Positive", Record: rec, Persisted: true}, nil
}

func setupTest(t *testing.T, timeout time.Duration) (*http.ServeMux, *store.Store, *fakeRunner) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	runner := &fakeRunner{st: st}
	mux := http.NewServeMux()
	NewRouter(st, runner, timeout).Register(mux)
	return mux, st, runner
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestIndexShowsEmptyHistory(t *testing.T) {
	mux, _, _ := setupTest(t, 0)
	rr := serve(mux, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "AI Cold Calling Agent")
	require.Contains(t, rr.Body.String(), "No call history found.")

	rr = serve(mux, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFormSubmitRendersResultAndHistory(t *testing.T) {
	mux, _, runner := setupTest(t, time.Minute)
	form := url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "phone": {"+15550100"}}
	req := httptest.NewRequest(http.MethodPost, "/calls", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := serve(mux, req)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, "Call started! Call ID: abc123")
	require.Contains(t, body, "Deal Status:</strong> Positive")
	require.Contains(t, body, "Customer interested, schedule demo")
	require.Contains(t, body, "Not Available")
	require.NotContains(t, body, "No call history found.")
	require.True(t, runner.deadline)
	require.Equal(t, "Ada", runner.contacts[0].Name)
}

func TestEmptyRecordingRendersNotAvailable(t *testing.T) {
	mux, st, _ := setupTest(t, 0)
	empty := ""
	_, err := st.Insert(context.Background(), &store.CallRecord{Name: "Ada", Email: "a@x", Phone: "+1", Status: "Negative", RecordingURL: &empty})
	require.NoError(t, err)

	rr := serve(mux, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.NotContains(t, body, `href=""`)
	require.Contains(t, body, "<td>Not Available</td></tr>")
}

func TestFormSubmitRejectedPlacement(t *testing.T) {
	mux, st, runner := setupTest(t, 0)
	runner.err = &console.PlacementError{Err: &provider.RejectionError{StatusCode: 400, Body: `{"message":"bad number"}`}}
	form := url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "phone": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/calls", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := serve(mux, req)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Contains(t, rr.Body.String(), "bad number")
	require.False(t, runner.deadline)

	rows, err := st.ListAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestFormSubmitStorageFailureIs500(t *testing.T) {
	mux, _, runner := setupTest(t, 0)
	runner.err = errors.Wrap(errors.New("disk I/O error"), "insert call record")
	req := httptest.NewRequest(http.MethodPost, "/calls", strings.NewReader("name=a&email=b&phone=c"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := serve(mux, req)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), "insert call record")
}

func TestAPICalls(t *testing.T) {
	mux, _, _ := setupTest(t, 0)

	rr := serve(mux, httptest.NewRequest(http.MethodGet, "/api/calls", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())

	body := bytes.NewBufferString(`{"name":"Ada","email":"ada@example.com","phone":"+15550100"}`)
	rr = serve(mux, httptest.NewRequest(http.MethodPost, "/api/calls", body))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Outcome  console.Outcome   `json:"outcome"`
		Messages []console.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "abc123", resp.Outcome.CallID)
	require.True(t, resp.Outcome.Persisted)
	require.Len(t, resp.Messages, 1)

	rr = serve(mux, httptest.NewRequest(http.MethodGet, "/api/calls", nil))
	var rows []store.CallRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	require.Equal(t, "Positive", rows[0].Status)
	require.Nil(t, rows[0].RecordingURL)
}

func TestAPIValidationIs400(t *testing.T) {
	mux, _, runner := setupTest(t, 0)
	runner.err = errors.Wrap(console.ErrValidation, "missing phone")
	rr := serve(mux, httptest.NewRequest(http.MethodPost, "/api/calls", strings.NewReader(`{"name":"Ada"}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "missing phone")

	rr = serve(mux, httptest.NewRequest(http.MethodPost, "/api/calls", strings.NewReader(`{`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(mux, httptest.NewRequest(http.MethodDelete, "/api/calls", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusOK, statusFor(nil))
	require.Equal(t, http.StatusGatewayTimeout, statusFor(errors.Wrap(context.DeadlineExceeded, "wait for call")))
	require.Equal(t, http.StatusBadGateway, statusFor(&console.PlacementError{Err: errors.New("dial tcp: refused")}))
	require.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestHealthEndpoint(t *testing.T) {
	mux, _, _ := setupTest(t, 0)
	rr := serve(mux, httptest.NewRequest(http.MethodGet, "/ops/health", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	broken := http.NewServeMux()
	NewRouter(store.New(filepath.Join(t.TempDir(), "missing", "x.db")), &fakeRunner{}, 0).Register(broken)
	rr = serve(broken, httptest.NewRequest(http.MethodGet, "/ops/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	mux, _, _ := setupTest(t, 0)
	rr := serve(mux, httptest.NewRequest(http.MethodGet, "/ops/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var snap map[string]int64
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	require.Contains(t, snap, "cycles_started")
}
