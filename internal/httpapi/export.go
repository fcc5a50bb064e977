package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/narravox/narravox/internal/export"
	"github.com/narravox/narravox/internal/observe"
)

func (s *Server) exportReadiness(w http.ResponseWriter, r *http.Request) {
	readiness, err := s.assembler.CheckReadiness(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, readiness)
}

func (s *Server) exportConcatenated(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	artifact, err := s.assembler.Concatenated(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	observe.Logger(r.Context()).Info("export served",
		"project_id", id, "filename", artifact.Filename, "bytes", len(artifact.Data))
	writeArtifact(w, artifact)
}

func (s *Server) exportArchive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	artifact, err := s.assembler.Archive(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	observe.Logger(r.Context()).Info("archive served",
		"project_id", id, "filename", artifact.Filename, "bytes", len(artifact.Data))
	writeArtifact(w, artifact)
}

// writeArtifact serves an export payload as a file attachment.
func writeArtifact(w http.ResponseWriter, a export.Artifact) {
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}
