package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/knowledgehub/internal/export"
	"github.com/hyperjump/knowledgehub/internal/models"
	"github.com/hyperjump/knowledgehub/internal/storage"
)

// maxListLimit caps article listings.
const maxListLimit = 500

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts := map[string]int64{}
	for _, src := range []string{"", models.SourceChat, models.SourceWiki} {
		n, err := s.store.CountArticles(ctx, src)
		if err != nil {
			s.logger.Error("status: count articles failed", zap.String("source", src), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		key := src
		if key == "" {
			key = "total"
		}
		counts[key] = n
	}

	resp := map[string]interface{}{"articles": counts, "running": !s.idle()}
	s.lastMu.RLock()
	if s.lastReport != nil {
		resp["last_run"] = s.lastReport
	}
	if s.lastWiki != nil {
		resp["last_wiki_sync"] = s.lastWiki
	}
	s.lastMu.RUnlock()
	if s.dbPath != "" {
		if size, err := storage.DatabaseFileBytes(s.dbPath); err == nil {
			resp["disk_usage_bytes"] = size
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	articles, err := s.store.ListArticles(r.Context(), filter)
	if err != nil {
		s.logger.Error("list articles failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if articles == nil {
		articles = []*models.Article{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"articles": articles, "count": len(articles)})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := s.store.GetArticle(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "article not found")
		return
	}
	if err != nil {
		s.logger.Error("get article failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if !s.runMu.TryLock() {
		s.respondError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer s.runMu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.runTimeout)
	defer cancel()
	report, err := s.runner.Run(ctx)
	s.lastMu.Lock()
	s.lastReport = report
	s.lastMu.Unlock()
	if err != nil {
		s.logger.Error("extraction failed", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"error": err.Error(), "report": report})
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleWikiSync(w http.ResponseWriter, r *http.Request) {
	if s.wiki == nil {
		s.respondError(w, http.StatusNotImplemented, "wiki sync not configured")
		return
	}
	if !s.runMu.TryLock() {
		s.respondError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer s.runMu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.runTimeout)
	defer cancel()
	report, err := s.wiki.Sync(ctx)
	s.lastMu.Lock()
	s.lastWiki = report
	s.lastMu.Unlock()
	if err != nil {
		s.logger.Error("wiki sync failed", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"error": err.Error(), "report": report})
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

type exportRequest struct {
	Filename string            `json:"filename"`
	Format   string            `json:"format"`
	Source   string            `json:"source,omitempty"`
	Project  string            `json:"project,omitempty"`
	Limit    int               `json:"limit,omitempty"`
	Items    []*models.Article `json:"items,omitempty"`
}

type exportResponse struct {
	Filename string `json:"filename"`
	MIME     string `json:"mime"`
	Encoding string `json:"encoding"`
	Body     string `json:"body"`
}

// handleExport renders the posted items, or the filtered store contents when
// no items are posted.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Unsupported format")
		return
	}

	items := req.Items
	if items == nil {
		items, err = s.store.ListArticles(r.Context(), models.ArticleFilter{
			Source: req.Source, Project: req.Project, Limit: req.Limit,
		})
		if err != nil {
			s.logger.Error("export: list articles failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, items); err != nil {
		s.logger.Error("export failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := exportResponse{
		Filename: export.Filename(req.Filename, format),
		MIME:     format.MIME(),
		Encoding: "utf-8",
		Body:     buf.String(),
	}
	if format.Binary() {
		resp.Encoding = "base64"
		resp.Body = base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) idle() bool {
	if s.runMu.TryLock() {
		s.runMu.Unlock()
		return true
	}
	return false
}

func parseFilter(r *http.Request) (models.ArticleFilter, error) {
	q := r.URL.Query()
	f := models.ArticleFilter{Source: q.Get("source"), Project: q.Get("project"), Limit: 50}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, errors.New("limit must be a positive integer")
		}
		f.Limit = n
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("offset must be a non-negative integer")
		}
		f.Offset = n
	}
	return f, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
