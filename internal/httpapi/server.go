// Package httpapi serves the offline cache, the category taxonomy, sync jobs
// and runtime settings as a JSON API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/config"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/jobs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/offline"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/service"
)

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

// syncTrigger enqueues sync runs and describes their schedule.
type syncTrigger interface {
	Enqueue(source, catalogPath string) (*jobs.SyncJob, bool)
	NextRuns(now time.Time) (service.ScheduleInfo, error)
}

type reportLookup interface {
	ReportForJob(ctx context.Context, jobID string) (*service.Report, bool, error)
}

type Server struct {
	library  *offline.Store
	queue    *jobs.Queue
	sync     syncTrigger
	reports  reportLookup
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier

	streamInterval time.Duration

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithSync(trigger syncTrigger) Option {
	return func(s *Server) {
		s.sync = trigger
	}
}

func WithReports(reports reportLookup) Option {
	return func(s *Server) {
		s.reports = reports
	}
}

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

// WithStreamInterval sets how often the job stream pushes a snapshot.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

func NewServer(library *offline.Store, queue *jobs.Queue, opts ...Option) *Server {
	s := &Server{
		library:        library,
		queue:          queue,
		streamInterval: time.Second,
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/api/offline", s.handleClearOffline)
	s.mux.HandleFunc("/api/offline/books", s.handleBooks)
	s.mux.HandleFunc("/api/offline/books/{id}", s.handleBook)
	s.mux.HandleFunc("/api/offline/books/{id}/translations", s.handleBookTranslations)
	s.mux.HandleFunc("/api/offline/books/{id}/translations/{lang}", s.handleTranslation)
	s.mux.HandleFunc("/api/offline/storage", s.handleStorage)
	s.mux.HandleFunc("/api/offline/export", s.handleExport)
	s.mux.HandleFunc("/api/offline/import", s.handleImport)

	s.mux.HandleFunc("/api/categories", s.handleCategories)
	s.mux.HandleFunc("/api/categories/aggregate", s.handleAggregate)

	s.mux.HandleFunc("/api/sync/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/sync/jobs/{id}", s.handleJob)
	s.mux.HandleFunc("/api/sync/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/sync/schedule", s.handleSchedule)

	s.mux.HandleFunc("/api/settings", s.handleSettings)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
