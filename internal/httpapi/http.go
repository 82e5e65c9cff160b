package httpapi

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"coldcall/internal/console"
	"coldcall/internal/metrics"
	"coldcall/internal/poller"
	"coldcall/internal/store"
)

//go:embed templates/index.html
var templateFS embed.FS

var page = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"summary": func(v *string) string {
		if v == nil || *v == "" {
			return poller.NotAvailable
		}
		return *v
	},
	"deref": func(v *string) string {
		if v == nil {
			return ""
		}
		return *v
	},
}).ParseFS(templateFS, "templates/index.html"))

// CycleRunner runs one call cycle.
type CycleRunner interface {
	Run(ctx context.Context, contact console.Contact, rep console.Reporter) (console.Outcome, error)
}

// Router builds HTTP handlers for the console page, /api and /ops.
type Router struct {
	store        *store.Store
	runner       CycleRunner
	cycleTimeout time.Duration
}

// NewRouter returns a router whose cycles are bounded by cycleTimeout; zero
// leaves them bounded only by the request context.
func NewRouter(st *store.Store, runner CycleRunner, cycleTimeout time.Duration) *Router {
	return &Router{store: st, runner: runner, cycleTimeout: cycleTimeout}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", r.index)
	mux.HandleFunc("/calls", r.submit)
	mux.HandleFunc("/api/calls", r.calls)
	mux.HandleFunc("/ops/health", r.health)
	mux.HandleFunc("/ops/metrics", r.metrics)
}

type pageData struct {
	Contact  console.Contact
	Messages []console.Message
	Outcome  *console.Outcome
	History  []store.CallRecord
}

func (r *Router) index(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.NotFound(w, req)
		return
	}
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.render(w, req, http.StatusOK, pageData{})
}

func (r *Router) submit(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := req.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	contact := console.Contact{
		Name:  req.PostForm.Get("name"),
		Email: req.PostForm.Get("email"),
		Phone: req.PostForm.Get("phone"),
	}
	rep := &console.RecordingReporter{}
	out, err := r.runCycle(req.Context(), contact, rep)
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		http.Error(w, err.Error(), code)
		return
	}
	data := pageData{Contact: contact, Messages: rep.Messages()}
	if err == nil {
		data.Outcome = &out
	}
	r.render(w, req, code, data)
}

func (r *Router) calls(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		list, err := r.store.ListAll(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []store.CallRecord{}
		}
		respondJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var contact console.Contact
		if err := json.NewDecoder(req.Body).Decode(&contact); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rep := &console.RecordingReporter{}
		out, err := r.runCycle(req.Context(), contact, rep)
		body := map[string]any{"outcome": out, "messages": rep.Messages()}
		if err != nil {
			body["error"] = err.Error()
		}
		respondJSON(w, statusFor(err), body)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if err := r.store.Health(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) metrics(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, metrics.Snapshot())
}

func (r *Router) runCycle(ctx context.Context, contact console.Contact, rep console.Reporter) (console.Outcome, error) {
	if r.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cycleTimeout)
		defer cancel()
	}
	return r.runner.Run(ctx, contact, rep)
}

func (r *Router) render(w http.ResponseWriter, req *http.Request, code int, data pageData) {
	history, err := r.store.ListAll(req.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data.History = history
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := page.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("render page")
	}
}

// statusFor maps a cycle error onto a response code. Aborted cycles that
// the operator can act on are not server errors.
func statusFor(err error) int {
	var placement *console.PlacementError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, console.ErrValidation):
		return http.StatusBadRequest
	case errors.As(err, &placement):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("write json")
	}
}
