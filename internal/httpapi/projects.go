package httpapi

import (
	"net/http"

	"github.com/narravox/narravox/internal/observe"
	"github.com/narravox/narravox/internal/project"
)

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if projects == nil {
		projects = []project.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

type createProjectRequest struct {
	Name string `json:"name"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.store.CreateProject(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	observe.Logger(r.Context()).Info("project created", "project_id", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	proj, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (s *Server) renameProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := s.store.RenameProject(r.Context(), id, req.Name); err != nil {
		s.writeError(w, r, err)
		return
	}
	proj, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteProject(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	observe.Logger(r.Context()).Info("project deleted", "project_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type textResponse struct {
	FullText string              `json:"fullText"`
	Chunks   []project.ChunkView `json:"chunks"`
}

func (s *Server) getText(w http.ResponseWriter, r *http.Request) {
	fullText, views, err := s.reconciler.FullText(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if views == nil {
		views = []project.ChunkView{}
	}
	writeJSON(w, http.StatusOK, textResponse{FullText: fullText, Chunks: views})
}

type putTextRequest struct {
	FullText string `json:"fullText"`
}

func (s *Server) putText(w http.ResponseWriter, r *http.Request) {
	var req putTextRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	views, err := s.reconciler.Reconcile(r.Context(), r.PathValue("id"), req.FullText)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if views == nil {
		views = []project.ChunkView{}
	}
	writeJSON(w, http.StatusOK, textResponse{FullText: req.FullText, Chunks: views})
}

type voiceResponse struct {
	VoiceID       *string                `json:"voiceId"`
	VoiceSettings *project.VoiceSettings `json:"voiceSettings"`
}

func (s *Server) getVoice(w http.ResponseWriter, r *http.Request) {
	proj, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, voiceResponse{VoiceID: proj.VoiceID, VoiceSettings: proj.VoiceSettings})
}

type putVoiceRequest struct {
	VoiceID       *string                `json:"voiceId"`
	VoiceSettings *project.VoiceSettings `json:"voiceSettings"`
}

func (s *Server) putVoice(w http.ResponseWriter, r *http.Request) {
	var req putVoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.VoiceSettings != nil {
		if err := req.VoiceSettings.Validate(); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	id := r.PathValue("id")
	if err := s.store.SetProjectVoice(r.Context(), id, req.VoiceID, req.VoiceSettings); err != nil {
		s.writeError(w, r, err)
		return
	}
	voiceID := ""
	if req.VoiceID != nil {
		voiceID = *req.VoiceID
	}
	observe.Logger(r.Context()).Info("project voice updated", "project_id", id, "voice_id", voiceID)
	writeJSON(w, http.StatusOK, voiceResponse{VoiceID: req.VoiceID, VoiceSettings: req.VoiceSettings})
}
