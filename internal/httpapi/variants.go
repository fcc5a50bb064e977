package httpapi

import (
	"net/http"
	"strconv"

	"github.com/narravox/narravox/internal/project"
)

func (s *Server) getVariant(w http.ResponseWriter, r *http.Request) {
	variant, err := s.store.GetVariant(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, variant)
}

func (s *Server) deleteVariant(w http.ResponseWriter, r *http.Request) {
	remaining, err := s.activator.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if remaining == nil {
		remaining = []project.AudioVariant{}
	}
	writeJSON(w, http.StatusOK, remaining)
}

func (s *Server) activateVariant(w http.ResponseWriter, r *http.Request) {
	variant, err := s.activator.Activate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, variant)
}

func (s *Server) getAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := s.store.GetVariantAudio(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// Variant audio never changes after generation, so clients may cache it
	// indefinitely.
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}
