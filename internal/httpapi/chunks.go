package httpapi

import (
	"net/http"

	"github.com/narravox/narravox/internal/observe"
	"github.com/narravox/narravox/internal/project"
)

type chunkSettingsRequest struct {
	UseCustomSettings   bool                   `json:"useCustomSettings"`
	CustomVoiceID       *string                `json:"customVoiceId"`
	CustomVoiceSettings *project.VoiceSettings `json:"customVoiceSettings"`
}

func (s *Server) putChunkSettings(w http.ResponseWriter, r *http.Request) {
	var req chunkSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.CustomVoiceSettings != nil {
		if err := req.CustomVoiceSettings.Validate(); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	id := r.PathValue("id")
	if err := s.store.SetChunkVoice(r.Context(), id, req.UseCustomSettings, req.CustomVoiceID, req.CustomVoiceSettings); err != nil {
		s.writeError(w, r, err)
		return
	}
	chunk, err := s.store.GetChunk(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chunk)
}

func (s *Server) resetChunkSettings(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.SetChunkVoice(r.Context(), id, false, nil, nil); err != nil {
		s.writeError(w, r, err)
		return
	}
	chunk, err := s.store.GetChunk(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chunk)
}

type generateRequest struct {
	// Count asks for enough new variants to bring the chunk's total to this
	// number. Zero or absent generates a single variant.
	Count int `json:"count"`
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	req := generateRequest{}
	// The body is optional for single-variant generation.
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	id := r.PathValue("id")

	if req.Count > 1 {
		result, err := s.generator.GenerateUpTo(r.Context(), id, req.Count)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	variant, err := s.generator.Generate(r.Context(), id)
	if err != nil {
		// A provider failure still produced a persisted error-state variant;
		// report the upstream failure.
		s.writeError(w, r, err)
		return
	}
	observe.Logger(r.Context()).Info("variant ready",
		"chunk_id", id, "variant_number", variant.VariantNumber)
	writeJSON(w, http.StatusCreated, variant)
}

func (s *Server) listVariants(w http.ResponseWriter, r *http.Request) {
	// Confirm the chunk exists so unknown ids yield 404 rather than an
	// empty list.
	id := r.PathValue("id")
	if _, err := s.store.GetChunk(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.store.ListVariants(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []project.AudioVariant{}
	}
	writeJSON(w, http.StatusOK, list)
}
