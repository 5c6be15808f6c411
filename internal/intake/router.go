package intake

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/kamino-ci/kamino/internal/job"
	"github.com/kamino-ci/kamino/internal/observer"
)

// Core is the subset of *dispatch.Core the REST surface needs.
type Core interface {
	QueuedJobs(q job.Query) []*job.Job
	RunningJobs(q job.Query) []*job.Job
	AllJobs(ctx context.Context, q job.Query) ([]*job.Job, error)
	RemoveFinishedJobs(ctx context.Context, q job.Query) (int, error)
	Restart(ctx context.Context, uid string) (string, error)
}

// Router builds the gorilla/mux router serving webhook intake, the job
// REST surface, and the observer WebSocket endpoint.
func Router(webhook http.Handler, core Core, hub *observer.Hub) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.Handle("/webhook", webhook).Methods(http.MethodPost)
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		observer.ServeWS(hub, w, req)
	})

	r.HandleFunc("/api/jobs/queued", jobsHandler(func(q job.Query) ([]*job.Job, error) {
		return core.QueuedJobs(q), nil
	})).Methods(http.MethodGet)

	r.HandleFunc("/api/jobs/running", jobsHandler(func(q job.Query) ([]*job.Job, error) {
		return core.RunningJobs(q), nil
	})).Methods(http.MethodGet)

	r.HandleFunc("/api/jobs", func(w http.ResponseWriter, req *http.Request) {
		jobs, err := core.AllJobs(req.Context(), parseQuery(req))
		writeJobs(w, jobs, err)
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/jobs", func(w http.ResponseWriter, req *http.Request) {
		n, err := core.RemoveFinishedJobs(req.Context(), parseQuery(req))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]int{"removed": n})
	}).Methods(http.MethodDelete)

	r.HandleFunc("/api/jobs/{uid}/restart", func(w http.ResponseWriter, req *http.Request) {
		uid := mux.Vars(req)["uid"]
		newUID, err := core.Restart(req.Context(), uid)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if newUID == "" {
			http.NotFound(w, req)
			return
		}
		writeJSON(w, map[string]string{"uid": newUID})
	}).Methods(http.MethodPost)

	return r
}

func jobsHandler(fetch func(job.Query) ([]*job.Job, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		jobs, err := fetch(parseQuery(req))
		writeJobs(w, jobs, err)
	}
}

func writeJobs(w http.ResponseWriter, jobs []*job.Job, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, jobs)
}

func parseQuery(req *http.Request) job.Query {
	var q job.Query
	values := req.URL.Query()
	if v := values.Get("pr"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.PRNumber = &n
		}
	}
	if v := values.Get("ref"); v != "" {
		ref := v
		q.Ref = &ref
	}
	if v := values.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Limit = n
		}
	}
	return q
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, struct {
		Status string    `json:"status"`
		Time   time.Time `json:"time"`
	}{Status: "healthy", Time: time.Now()})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
