package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-items/internal/scene"
)

// maxQueryParamLen limits query parameter length to prevent DoS via oversized URL params.
const maxQueryParamLen = 200

// handleListScenes returns every loaded scene with its states.
func (s *Server) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	if s.scenes == nil {
		writeJSON(w, http.StatusOK, map[string]any{"scenes": []scene.Info{}, "count": 0})
		return
	}

	paths := s.scenes.Scenes()
	out := make([]scene.Info, 0, len(paths))
	for _, p := range paths {
		info, err := s.scenes.Info(p)
		if err != nil {
			// Unloaded between the two calls.
			continue
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenes": out, "count": len(out)})
}

// handleGetScene returns one scene.
func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")
	if s.scenes == nil {
		writeNotFound(w, "scene not found: "+path)
		return
	}
	info, err := s.scenes.Info(path)
	if errors.Is(err, scene.ErrSceneNotFound) {
		writeNotFound(w, "scene not found: "+path)
		return
	}
	if err != nil {
		writeInternalError(w, "failed to load scene")
		return
	}
	writeJSON(w, http.StatusOK, info)
}
