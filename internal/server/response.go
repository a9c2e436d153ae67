package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/quire-reader/quire/internal/document"
	"github.com/quire-reader/quire/internal/session"
)

type pageJSON struct {
	Label  string `json:"label"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type documentJSON struct {
	Name      string     `json:"name"`
	PageCount int        `json:"pageCount"`
	Pages     []pageJSON `json:"pages"`
}

func documentResponse(doc *document.Document) *documentJSON {
	if doc == nil {
		return nil
	}

	pages := make([]pageJSON, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		pages = append(pages, pageJSON{Label: p.Label, Width: p.Width, Height: p.Height})
	}

	return &documentJSON{
		Name:      doc.Name,
		PageCount: doc.PageCount,
		Pages:     pages,
	}
}

// sessionResponse is the reading state the frontend renders from. Page
// locators are rewritten to this API's page endpoint.
func (s *Server) sessionResponse() map[string]any {
	images := s.reader.PageImages()
	pages := make(map[string]string, len(images))
	for index := range images {
		pages[strconv.Itoa(index)] = fmt.Sprintf("/v1/pages/%d", index)
	}

	return map[string]any{
		"document":   documentResponse(s.reader.Document()),
		"activePage": s.reader.ActivePage(),
		"viewMode":   string(s.reader.ViewMode()),
		"pages":      pages,
		"lastError":  s.reader.LastError(),
	}
}

func parseViewMode(mode string) (session.ViewMode, error) {
	switch session.ViewMode(mode) {
	case session.ModePaged:
		return session.ModePaged, nil
	case session.ModeContinuous:
		return session.ModeContinuous, nil
	default:
		return "", fmt.Errorf("unknown view mode %q", mode)
	}
}

func parseIndex(raw string) (int, error) {
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid page index %q", raw)
	}
	return index, nil
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
