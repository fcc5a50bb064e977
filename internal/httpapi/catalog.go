package httpapi

import (
	"net/http"

	"github.com/narravox/narravox/pkg/provider/tts"
)

func (s *Server) listVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := s.voices.ListVoices(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if voices == nil {
		voices = []tts.Voice{}
	}
	writeJSON(w, http.StatusOK, voices)
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.voices.ListModels(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if models == nil {
		models = []tts.Model{}
	}
	writeJSON(w, http.StatusOK, models)
}
