package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/spellin/internal/favourites"
	"github.com/MrWong99/spellin/internal/observe"
	"github.com/MrWong99/spellin/internal/render"
	"github.com/MrWong99/spellin/internal/spell"
)

// spellResponse is the JSON body of a spelling.
type spellResponse struct {
	Text   string        `json:"text"`
	Words  []string      `json:"words"`
	Tokens []spell.Token `json:"tokens"`
}

// addRequest is the JSON body of POST /api/favourites.
type addRequest struct {
	Text string `json:"text"`
	Name string `json:"name"`
}

func (s *Server) getSpell(w http.ResponseWriter, r *http.Request) {
	s.writeSpelling(w, r, r.URL.Query().Get("text"))
}

func (s *Server) spellFavourite(w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)
	text, found, err := s.store.Get(r.Context(), key)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "favourite not found")
		return
	}
	s.writeSpelling(w, r, text)
}

// writeSpelling spells text and writes it as JSON or, when the format query
// parameter asks for it, as rendered text.
func (s *Server) writeSpelling(w http.ResponseWriter, r *http.Request, text string) {
	var style render.Style
	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
	case "text":
		style = render.StylePlain
	case "markdown":
		style = render.StyleMarkdown
	default:
		writeError(w, http.StatusBadRequest, "format must be json, text or markdown")
		return
	}

	sp := s.spelling.Load()
	start := time.Now()
	tokens := sp.engine.Spell(text)
	st := spell.Count(tokens)
	s.metrics.RecordSpell(r.Context(), sp.table, st.Words, st.Breaks, st.Fallbacks, time.Since(start))

	if format == "text" || format == "markdown" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := render.Write(w, tokens, render.FromConfig(*s.display.Load(), style)); err != nil {
			observe.Logger(r.Context()).Debug("write spelling", "err", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, spellResponse{Text: text, Words: spell.Words(tokens), Tokens: tokens})
}

func (s *Server) listFavourites(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("content") == "true" {
		entries, err := s.store.ListWithContent(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	keys, err := s.store.List(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (s *Server) getFavourite(w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)
	text, found, err := s.store.Get(r.Context(), key)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "favourite not found")
		return
	}
	writeJSON(w, http.StatusOK, favourites.Entry{Key: key, Text: text})
}

func (s *Server) favouriteExists(w http.ResponseWriter, r *http.Request) {
	exists, err := s.store.Exists(r.Context(), r.URL.Query().Get("text"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (s *Server) addFavourite(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key, err := s.store.Add(r.Context(), req.Text, req.Name)
	if errors.Is(err, favourites.ErrEmptyKey) {
		writeError(w, http.StatusBadRequest, "text or name is required")
		return
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (s *Server) deleteFavourite(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), keyParam(r)); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clearFavourites removes everything only with ?confirm=true. Without it the
// request succeeds and nothing changes, mirroring [favourites.Store.ClearAll].
func (s *Server) clearFavourites(w http.ResponseWriter, r *http.Request) {
	confirmed := r.URL.Query().Get("confirm") == "true"
	if err := s.store.ClearAll(r.Context(), confirmed); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// keyParam returns the decoded {key} path segment. chi routes on the raw
// path when the URL carried escapes, leaving the segment escaped.
func keyParam(r *http.Request) string {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath == "" {
		return key
	}
	if k, err := url.PathUnescape(key); err == nil {
		return k
	}
	return key
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError hides storage details from clients and logs them instead.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	observe.Logger(r.Context()).Error("favourites request failed", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "storage unavailable")
}
