// Package server is the HTTP request surface: document upload plus deferred
// notarization, status queries, and storage browsing.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/gorilla/mux"

	"sigillo.dev/sigillo/docstore"
	"sigillo.dev/sigillo/model"
	"sigillo.dev/sigillo/notary"
)

// Server wires the document store, the orchestrator and its queue behind a
// gorilla/mux router.
type Server struct {
	store  *docstore.Store
	orch   *notary.Orchestrator
	queue  *notary.Queue
	logger *slog.Logger
}

// New builds a Server. queue may be nil, in which case notarization runs
// synchronously inside the request (tests use this).
func New(store *docstore.Store, orch *notary.Orchestrator, queue *notary.Queue, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, orch: orch, queue: queue, logger: logger}
}

// Router returns the configured route set.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware, corsMiddleware)

	r.HandleFunc("/notarize", s.handleNotarize).Methods(http.MethodPost)
	r.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	r.HandleFunc("/storage/rename", s.handleRename).Methods(http.MethodPost)
	r.HandleFunc("/storage/move", s.handleMove).Methods(http.MethodPost)
	r.HandleFunc("/storage/delete", s.handleDelete).Methods(http.MethodPost)
	r.HandleFunc("/storage/{storage_id}/list", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/storage/{storage_id}/download/{path:.*}", s.handleDownload).Methods(http.MethodGet)
	r.HandleFunc("/storage/{storage_id}/commitment/{path:.*}", s.handleCommitment).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return r
}

type notarizeRequest struct {
	DocumentBase64 string         `json:"document_base64"`
	FileName       string         `json:"file_name"`
	StorageID      string         `json:"storage_id"`
	FolderPath     string         `json:"folder_path"`
	Metadata       map[string]any `json:"metadata"`
	SelectedChain  []string       `json:"selected_chain"`
}

type queryRequest struct {
	StorageID     string   `json:"storage_id"`
	FolderPath    string   `json:"folder_path"`
	FileName      string   `json:"file_name"`
	SelectedChain []string `json:"selected_chain"`
}

type pathRequest struct {
	StorageID   string `json:"storage_id"`
	Path        string `json:"path"`
	NewName     string `json:"new_name,omitempty"`
	Destination string `json:"destination,omitempty"`
	Recursive   bool   `json:"recursive,omitempty"`
}

type okResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// handleNotarize persists the document, answers, and defers the ledger work
// to the background queue. The response carries no ledger outcome; callers
// poll /query for the validation history.
func (s *Server) handleNotarize(w http.ResponseWriter, r *http.Request) {
	var req notarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, model.Errorf(model.ErrInvalidInput, "invalid request body: %v", err))
		return
	}
	// Network and payload validation happen before any storage side effect.
	if err := s.orch.CheckNetworks(req.SelectedChain); err != nil {
		s.writeError(w, err)
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.DocumentBase64)
	if err != nil {
		s.writeError(w, model.Errorf(model.ErrInvalidInput, "document_base64 is not valid base64: %v", err))
		return
	}

	rec, err := s.store.Put(req.StorageID, req.FolderPath, req.FileName, data, req.Metadata)
	if err != nil {
		s.writeError(w, err)
		return
	}

	task := notary.Task{
		Namespace: req.StorageID,
		RelPath:   rec.RelPath(),
		Networks:  req.SelectedChain,
	}
	if s.queue != nil {
		// Fire and forget: the response carries no ledger outcome, callers
		// poll /query for the validation history.
		defer s.queue.Enqueue(task)
	} else {
		_ = s.orch.Notarize(context.Background(), task.Namespace, task.RelPath, task.Networks)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"message": fmt.Sprintf("document %q stored in %q, fingerprint %s",
			rec.FileName, req.FolderPath, rec.Fingerprint),
		"record": rec,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, model.Errorf(model.ErrInvalidInput, "invalid request body: %v", err))
		return
	}
	if err := s.orch.CheckNetworks(req.SelectedChain); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.store.Record(req.StorageID, path.Join(req.FolderPath, req.FileName))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, model.Errorf(model.ErrInvalidInput, "invalid request body: %v", err))
		return
	}
	if err := s.store.Rename(req.StorageID, req.Path, req.NewName); err != nil {
		s.writeError(w, err)
		return
	}
	// Directory renames relocate whole subtrees; records follow via resync.
	if err := s.store.Resync(req.StorageID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{OK: true, Message: fmt.Sprintf("renamed to %s", req.NewName)})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, model.Errorf(model.ErrInvalidInput, "invalid request body: %v", err))
		return
	}
	if err := s.store.Move(req.StorageID, req.Path, req.Destination); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.Resync(req.StorageID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{OK: true, Message: fmt.Sprintf("moved to %s", req.Destination)})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, model.Errorf(model.ErrInvalidInput, "invalid request body: %v", err))
		return
	}
	if err := s.store.Delete(req.StorageID, req.Path, req.Recursive); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{OK: true, Message: "deleted"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	listing, err := s.store.List(mux.Vars(r)["storage_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rc, info, err := s.store.Open(vars["storage_id"], vars["path"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer rc.Close()
	if info.Archive {
		w.Header().Set("Content-Type", "application/zip")
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size))
	io.Copy(w, rc)
}

func (s *Server) handleCommitment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data, err := s.store.Commitment(vars["storage_id"], vars["path"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response failed", "error", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch model.CodeOf(err) {
	case model.ErrPathViolation, model.ErrInvalidInput, model.ErrUnimplemented,
		model.ErrDirectoryNotEmpty, model.ErrImmutable:
		status = http.StatusBadRequest
	case model.ErrNotFound:
		status = http.StatusNotFound
	case model.ErrAuthFailed, model.ErrAPI:
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(model.CodeOf(err)),
	})
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
