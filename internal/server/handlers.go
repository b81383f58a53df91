package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/personaldrive/semidx/internal/models"
	"github.com/personaldrive/semidx/internal/semerr"
	"github.com/personaldrive/semidx/pkg/utils"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Limit <= 0 {
		req.Limit = s.config.Search.DefaultLimit
	}
	owner := userID(r)
	s.logger.Debug("search request",
		zap.String("query", utils.Truncate(req.Query, 80)),
		zap.String("owner_id", owner),
		zap.Int("limit", req.Limit))

	start := time.Now()
	matches, err := s.manager.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.respondSemErr(w, "search failed", err)
		return
	}

	results := make([]*models.SearchHit, 0, len(matches))
	for _, m := range matches {
		hit := &models.SearchHit{Identifier: m.Identifier, Distance: m.Distance}
		// Identifiers that came through the file pipeline resolve to metadata.
		// Another user's files never leave this loop. Raw text documents
		// indexed via /documents, and slots left behind by deleted files,
		// have no metadata; those hits carry the identifier only.
		if f, err := s.storage.GetFile(r.Context(), m.Identifier); err == nil {
			if f.OwnerID != owner {
				continue
			}
			hit.File = f
		}
		if req.FolderID != "" && (hit.File == nil || hit.File.FolderID != req.FolderID) {
			continue
		}
		hit.Rank = len(results) + 1
		results = append(results, hit)
	}

	s.respondJSON(w, http.StatusOK, &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
		Query:     req.Query,
	})
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var req models.IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("index document request", zap.String("identifier", req.Identifier))

	outcome, err := s.manager.IndexDocument(r.Context(), req.Identifier, req.Text)
	if err != nil {
		s.respondSemErr(w, "indexing failed", err)
		return
	}
	status := http.StatusCreated
	if outcome == "already_indexed" {
		status = http.StatusOK
	}
	s.respondJSON(w, status, &models.IndexResponse{
		Identifier: req.Identifier,
		Outcome:    string(outcome),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.manager.Stats()
	fileCount, err := s.storage.CountFiles(r.Context(), "")
	if err != nil {
		s.respondSemErr(w, "stats failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"dimensions":     st.Dimensions,
		"document_count": st.DocumentCount,
		"file_count":     fileCount,
	})
}

func (s *Server) handlePresignUpload(w http.ResponseWriter, r *http.Request) {
	var req models.PresignUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.files.PresignUpload(r.Context(), userID(r), req)
	if err != nil {
		s.respondSemErr(w, "presign upload failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	f, err := s.files.CompleteUpload(r.Context(), userID(r), req.FileID)
	if err != nil {
		s.respondSemErr(w, "complete upload failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, f)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	resp, err := s.files.List(r.Context(), userID(r), models.ListFilter{
		FolderID: q.Get("folder_id"),
		MimeType: q.Get("mime_type"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.respondSemErr(w, "list files failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.files.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.respondSemErr(w, "get file failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, f)
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	var upd models.FileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	f, err := s.files.Update(r.Context(), userID(r), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.respondSemErr(w, "update file failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.files.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.respondSemErr(w, "delete file failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	resp, err := s.files.PresignDownload(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.respondSemErr(w, "presign download failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"service": "semidx",
		"version": "v1",
	})
}

// respondSemErr maps an error's kind to an HTTP status. Internal errors are
// logged with detail but reported to the client without it.
func (s *Server) respondSemErr(w http.ResponseWriter, msg string, err error) {
	status := semerr.HTTPStatus(semerr.KindOf(err))
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, status, msg)
		return
	}
	s.logger.Debug(msg, zap.Error(err))
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
