package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-items/internal/item"
)

// SetItemRequest is the body of PUT /items/{path}.
type SetItemRequest struct {
	Value  any    `json:"value"`
	Source string `json:"source"`
}

// FadeRequest is the body of POST /items/{path}/fade.
type FadeRequest struct {
	Dest any     `json:"dest"`
	Step float64 `json:"step"`

	// Delta is the pause between steps in seconds.
	Delta        float64  `json:"delta"`
	StopFade     []string `json:"stop_fade,omitempty"`
	ContinueFade []string `json:"continue_fade,omitempty"`
}

// handleListItems returns every item, or those matching ?match=<pattern>.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	var items []*item.Item
	if pattern := r.URL.Query().Get("match"); pattern != "" {
		if len(pattern) > maxQueryParamLen {
			writeBadRequest(w, "match exceeds maximum length")
			return
		}
		items = s.items.Match(pattern)
	} else {
		items = s.items.All()
	}

	out := make([]item.Snapshot, 0, len(items))
	for _, it := range items {
		out = append(out, it.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "count": len(out)})
}

func (s *Server) lookupItem(w http.ResponseWriter, r *http.Request) (*item.Item, bool) {
	path := chi.URLParam(r, "path")
	it, ok := s.items.Get(path)
	if !ok {
		writeNotFound(w, "item not found: "+path)
		return nil, false
	}
	return it, true
}

// handleGetItem returns one item.
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	it, ok := s.lookupItem(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, it.Snapshot())
}

// handleSetItem changes an item's value with caller API.
func (s *Server) handleSetItem(w http.ResponseWriter, r *http.Request) {
	it, ok := s.lookupItem(w, r)
	if !ok {
		return
	}

	var req SetItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := it.Change(req.Value, item.CallerAPI, req.Source, ""); err != nil {
		var ce *item.CoercionError
		if errors.As(err, &ce) {
			writeInvalidValue(w, err.Error())
			return
		}
		s.logger.Error("item change failed", "item", it.Path(), "error", err)
		writeInternalError(w, "failed to change item")
		return
	}
	writeJSON(w, http.StatusOK, it.Snapshot())
}

// handleFadeItem starts a fade. The ramp outlives the request and stops
// when the server closes.
func (s *Server) handleFadeItem(w http.ResponseWriter, r *http.Request) {
	it, ok := s.lookupItem(w, r)
	if !ok {
		return
	}

	var req FadeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Delta < 0 {
		writeBadRequest(w, "delta must not be negative")
		return
	}

	err := it.StartFade(s.ctx, req.Dest, item.FadeOptions{
		Step:         req.Step,
		Delta:        time.Duration(req.Delta * float64(time.Second)),
		StopFade:     req.StopFade,
		ContinueFade: req.ContinueFade,
	})
	if err != nil {
		var ce *item.CoercionError
		if errors.As(err, &ce) || errors.Is(err, item.ErrNotNumeric) || errors.Is(err, item.ErrInvalidFade) {
			writeInvalidValue(w, err.Error())
			return
		}
		s.logger.Error("fade failed", "item", it.Path(), "error", err)
		writeInternalError(w, "failed to start fade")
		return
	}
	writeJSON(w, http.StatusAccepted, it.Snapshot())
}
