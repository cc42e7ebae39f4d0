package web

import (
	"net/http"
	"strconv"

	"github.com/stagepipe/omcbridge/internal/core"
	"github.com/stagepipe/omcbridge/internal/schema"
)

// handleIndex serves the single-page converter UI.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// handleStatus reports converter occupancy and which optional subsystems
// (persistence, verification, export) are available.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.Status())
}

// mappingsResponse describes the conversion tables and accepted inputs so
// the UI can render them without hardcoding.
type mappingsResponse struct {
	Columns       []string           `json:"columns"`
	States        map[string]string  `json:"states"`
	DefaultState  string             `json:"defaultState"`
	Categories    map[string]string  `json:"categories"`
	Policies      []string           `json:"policies"`
	DefaultPolicy core.RawCopyPolicy `json:"defaultPolicy"`
}

// handleMappings returns the static conversion tables.
func (s *Server) handleMappings(w http.ResponseWriter, r *http.Request) {
	states := make(map[string]string)
	for code, state := range core.StateMappings() {
		states[code] = string(state)
	}
	categories := make(map[string]string)
	for step, category := range core.CategoryMappings() {
		categories[step] = string(category)
	}

	writeJSON(w, mappingsResponse{
		Columns:       schema.ColumnNames(),
		States:        states,
		DefaultState:  string(core.DefaultState),
		Categories:    categories,
		Policies:      []string{string(core.RawCopyVerbatim), string(core.RawCopyEncoded)},
		DefaultPolicy: s.service.DefaultPolicy(),
	})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
