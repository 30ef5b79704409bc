package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/category"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/config"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/jobs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/offline"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/service"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/log"
)

const maxBodyBytes = 32 << 20

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var (
			books []offline.Book
			err   error
		)
		if q := r.URL.Query().Get("q"); q != "" {
			books, err = s.library.SearchBooks(r.Context(), q)
		} else {
			books, err = s.library.GetAllBooks(r.Context())
		}
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, books)
	case http.MethodPost:
		var book offline.Book
		if !decodeBody(w, r, &book) {
			return
		}
		saved, err := s.library.SaveBook(r.Context(), book)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		book, err := s.library.GetBook(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if book == nil {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodDelete:
		if err := s.library.DeleteBook(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleBookTranslations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	translations, err := s.library.GetBookTranslations(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, translations)
}

type saveTranslationRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleTranslation(w http.ResponseWriter, r *http.Request) {
	id, lang := r.PathValue("id"), r.PathValue("lang")
	switch r.Method {
	case http.MethodGet:
		tr, err := s.library.GetTranslation(r.Context(), id, lang)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if tr == nil {
			writeError(w, http.StatusNotFound, "translation not found")
			return
		}
		writeJSON(w, http.StatusOK, tr)
	case http.MethodPut:
		var req saveTranslationRequest
		if !decodeBody(w, r, &req) {
			return
		}
		tr, err := s.library.SaveTranslation(r.Context(), id, lang, req.Content)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tr)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type storageResponse struct {
	Available bool `json:"available"`
	*offline.StorageInfo
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	info, err := s.library.GetStorageInfo(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, storageResponse{Available: info != nil, StorageInfo: info})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	data, err := s.library.ExportOfflineLibrary(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	name := "nara-offline-library-" + data.ExportedAt.Format("2006-01-02") + ".json"
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var data offline.LibraryExport
	if !decodeBody(w, r, &data) {
		return
	}
	res, err := s.library.ImportOfflineLibrary(r.Context(), &data)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleClearOffline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.library.ClearAllOfflineData(r.Context()); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type categoriesResponse struct {
	Groups        []category.Group        `json:"groups"`
	MaterialTypes []category.MaterialType `json:"material_types"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, categoriesResponse{
		Groups:        category.Groups(),
		MaterialTypes: category.MaterialTypes(),
	})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var counts []category.Count
	if !decodeBody(w, r, &counts) {
		return
	}
	writeJSON(w, http.StatusOK, category.Aggregate(counts))
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.queue.List())
	case http.MethodPost:
		if s.sync == nil {
			writeError(w, http.StatusNotImplemented, "sync is not configured")
			return
		}
		// the catalogue location is fixed by server configuration
		job, created := s.sync.Enqueue(jobs.SourceManual, "")
		code := http.StatusCreated
		if !created {
			code = http.StatusOK
		}
		writeJSON(w, code, map[string]any{
			"created": created,
			"job":     job,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type jobDetailResponse struct {
	Job    *jobs.SyncJob   `json:"job"`
	Report *service.Report `json:"report,omitempty"`
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, ok := s.queue.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	resp := jobDetailResponse{Job: job}
	if s.reports != nil && !job.Active() {
		report, found, err := s.reports.ReportForJob(r.Context(), job.ID)
		if err != nil {
			log.Error("Failed to load report of job %s: %v", job.ID, err)
		} else if found {
			resp.Report = report
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.sync == nil {
		writeError(w, http.StatusNotImplemented, "sync is not configured")
		return
	}
	info, err := s.sync.NextRuns(time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if !decodeBody(w, r, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		previous, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(req); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			// the running service must not drift from the persisted settings
			if s.apply != nil {
				if rollbackErr := s.apply(previous); rollbackErr != nil {
					log.Error("Failed to restore runtime settings after save error: %v", rollbackErr)
				}
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

// writeStoreError maps store error types to status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errs.IsType(err, errs.ErrMalformedInput), errs.IsType(err, errs.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errs.IsType(err, errs.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error("Request failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
