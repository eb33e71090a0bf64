package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/clipmark/clipmark/pkg/domain"
	"github.com/clipmark/clipmark/pkg/repository"
)

// sourceRequest is the payload for creating a source
type sourceRequest struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	SourceType string `json:"source_type"`
}

// sourceResponse is the JSON shape of a content source
type sourceResponse struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	SourceType  string     `json:"source_type"`
	Active      bool       `json:"active"`
	LastFetched *time.Time `json:"last_fetched,omitempty"`
	ErrorCount  int        `json:"error_count"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toSourceResponse(src *domain.ContentSource) sourceResponse {
	return sourceResponse{
		ID:          src.ID,
		Name:        src.Name,
		URL:         src.URL,
		SourceType:  string(src.SourceType),
		Active:      src.Active,
		LastFetched: src.LastFetched,
		ErrorCount:  src.ErrorCount,
		LastError:   src.LastError,
		CreatedAt:   src.CreatedAt,
	}
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, http.StatusOK, status)
}

// userID extracts the authenticated principal from the request. Token
// verification happens upstream, the header carries the resolved identity.
func userID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("missing or invalid user identity")
	}
	return id, nil
}

// ownedSource resolves the {id} path value to a source owned by the caller
func (s *Server) ownedSource(w http.ResponseWriter, r *http.Request) (*domain.ContentSource, bool) {
	uid, err := userID(r)
	if err != nil {
		renderError(w, err, http.StatusUnauthorized)
		return nil, false
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, fmt.Errorf("invalid source ID"), http.StatusBadRequest)
		return nil, false
	}

	src, err := s.sources.GetSource(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		renderError(w, fmt.Errorf("source not found"), http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		lgr.Printf("[ERROR] failed to get source %d: %v", id, err)
		renderError(w, err, http.StatusInternalServerError)
		return nil, false
	}
	if src.UserID != uid {
		// don't leak existence of another user's source
		renderError(w, fmt.Errorf("source not found"), http.StatusNotFound)
		return nil, false
	}

	return src, true
}

// listSourcesHandler returns all sources owned by the caller
func (s *Server) listSourcesHandler(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		renderError(w, err, http.StatusUnauthorized)
		return
	}

	sources, err := s.sources.GetSources(r.Context(), uid)
	if err != nil {
		lgr.Printf("[ERROR] failed to list sources: %v", err)
		renderError(w, err, http.StatusInternalServerError)
		return
	}

	resp := make([]sourceResponse, len(sources))
	for i := range sources {
		resp[i] = toSourceResponse(&sources[i])
	}
	renderJSON(w, http.StatusOK, resp)
}

// createSourceHandler registers a new source for the caller
func (s *Server) createSourceHandler(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		renderError(w, err, http.StatusUnauthorized)
		return
	}

	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.URL == "" {
		renderError(w, fmt.Errorf("name and url are required"), http.StatusBadRequest)
		return
	}
	if _, err := url.ParseRequestURI(req.URL); err != nil {
		renderError(w, fmt.Errorf("invalid url"), http.StatusBadRequest)
		return
	}
	srcType := domain.SourceType(req.SourceType)
	if srcType != domain.SourceTypeRSS && srcType != domain.SourceTypeWebpage {
		renderError(w, fmt.Errorf("source_type must be rss or webpage"), http.StatusBadRequest)
		return
	}

	src := &domain.ContentSource{
		UserID:     uid,
		Name:       req.Name,
		URL:        req.URL,
		SourceType: srcType,
		Active:     true,
	}
	if err := s.sources.CreateSource(r.Context(), src); err != nil {
		lgr.Printf("[ERROR] failed to create source: %v", err)
		renderError(w, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, http.StatusCreated, toSourceResponse(src))
}

// getSourceHandler returns a single source owned by the caller
func (s *Server) getSourceHandler(w http.ResponseWriter, r *http.Request) {
	src, ok := s.ownedSource(w, r)
	if !ok {
		return
	}
	renderJSON(w, http.StatusOK, toSourceResponse(src))
}

// deleteSourceHandler removes a source; ingested content stays
func (s *Server) deleteSourceHandler(w http.ResponseWriter, r *http.Request) {
	src, ok := s.ownedSource(w, r)
	if !ok {
		return
	}

	if err := s.sources.DeleteSource(r.Context(), src.ID); err != nil {
		lgr.Printf("[ERROR] failed to delete source %d: %v", src.ID, err)
		renderError(w, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"result": "deleted"})
}

// activateSourceHandler re-enables a source and resets its error health
func (s *Server) activateSourceHandler(w http.ResponseWriter, r *http.Request) {
	s.setSourceActive(w, r, true)
}

// deactivateSourceHandler disables a source
func (s *Server) deactivateSourceHandler(w http.ResponseWriter, r *http.Request) {
	s.setSourceActive(w, r, false)
}

func (s *Server) setSourceActive(w http.ResponseWriter, r *http.Request, active bool) {
	src, ok := s.ownedSource(w, r)
	if !ok {
		return
	}

	if err := s.sources.UpdateSourceActive(r.Context(), src.ID, active); err != nil {
		lgr.Printf("[ERROR] failed to update source %d: %v", src.ID, err)
		renderError(w, err, http.StatusInternalServerError)
		return
	}

	src.Active = active
	renderJSON(w, http.StatusOK, toSourceResponse(src))
}

// importNowHandler triggers a synchronous import of a source. Ownership and
// active state are enforced here, the importer itself only re-checks
// existence and active.
func (s *Server) importNowHandler(w http.ResponseWriter, r *http.Request) {
	src, ok := s.ownedSource(w, r)
	if !ok {
		return
	}

	if !src.Active {
		renderError(w, fmt.Errorf("source is not active"), http.StatusBadRequest)
		return
	}

	res := s.importer.ImportFromSource(r.Context(), src.ID)
	renderJSON(w, http.StatusOK, res)
}

// importLogsHandler returns the source's audit trail, most recent first
func (s *Server) importLogsHandler(w http.ResponseWriter, r *http.Request) {
	src, ok := s.ownedSource(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 50)
	logs, err := s.logs.GetImportLogs(r.Context(), src.ID, limit)
	if err != nil {
		lgr.Printf("[ERROR] failed to get import logs for source %d: %v", src.ID, err)
		renderError(w, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, http.StatusOK, logs)
}

// listContentsHandler returns the caller's content items, newest first
func (s *Server) listContentsHandler(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		renderError(w, err, http.StatusUnauthorized)
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	contents, err := s.contents.GetContents(r.Context(), uid, limit, offset)
	if err != nil {
		lgr.Printf("[ERROR] failed to list contents: %v", err)
		renderError(w, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, http.StatusOK, contents)
}

// queryInt parses an integer query parameter with a default
func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
