// Package export assembles a project's active variant audio into deliverable
// artifacts: a single concatenated audiobook file or a zip archive of
// per-chunk files.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/narravox/narravox/internal/observe"
	"github.com/narravox/narravox/internal/project"
	"github.com/narravox/narravox/pkg/provider/concat"
)

// MissingChunk identifies a chunk blocking export.
type MissingChunk struct {
	// Index is the chunk's 1-based position in the project.
	Index int `json:"index"`

	// Excerpt is the start of the chunk's text, for display.
	Excerpt string `json:"excerpt"`
}

// Readiness reports whether a project can be exported and which chunks
// still need audio.
type Readiness struct {
	Ready       int            `json:"ready"`
	Total       int            `json:"total"`
	CanExport   bool           `json:"canExport"`
	Missing     []MissingChunk `json:"missing"`
	ProjectName string         `json:"projectName"`
}

// NotReadyError is returned by the assembly operations when export
// preconditions are not met. It carries the readiness report so callers can
// show which chunks are missing audio.
type NotReadyError struct {
	Readiness Readiness
}

func (e *NotReadyError) Error() string {
	missing := len(e.Readiness.Missing)
	if e.Readiness.Total == 0 {
		return "project has no chunks with text"
	}
	return fmt.Sprintf("%d of %d chunks missing audio", missing, e.Readiness.Total)
}

// Assembler builds export artifacts from a project's active variants.
type Assembler struct {
	store   project.Store
	concat  concat.Concatenator
	metrics *observe.Metrics
}

// NewAssembler creates an Assembler. metrics may be nil.
func NewAssembler(store project.Store, concatenator concat.Concatenator, metrics *observe.Metrics) *Assembler {
	return &Assembler{store: store, concat: concatenator, metrics: metrics}
}

// chunkAudio is one exportable chunk paired with its active variant's audio.
type chunkAudio struct {
	chunk project.Chunk
	audio []byte
}

// collect loads the project, its chunks with text, and each one's active
// variant audio, preserving chunk order. The returned readiness reflects
// which text-bearing chunks lack usable audio.
func (a *Assembler) collect(ctx context.Context, projectID string) (project.Project, []chunkAudio, Readiness, error) {
	proj, err := a.store.GetProject(ctx, projectID)
	if err != nil {
		return project.Project{}, nil, Readiness{}, err
	}
	chunks, err := a.store.ListChunks(ctx, projectID)
	if err != nil {
		return project.Project{}, nil, Readiness{}, err
	}
	active, err := a.store.ListActiveVariants(ctx, projectID)
	if err != nil {
		return project.Project{}, nil, Readiness{}, err
	}
	byChunk := make(map[string]project.AudioVariant, len(active))
	for _, v := range active {
		byChunk[v.ChunkID] = v
	}

	readiness := Readiness{ProjectName: proj.Name}
	var ordered []chunkAudio
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		readiness.Total++
		v, ok := byChunk[c.ID]
		if !ok || len(v.Audio) == 0 {
			readiness.Missing = append(readiness.Missing, MissingChunk{
				Index:   c.Order + 1,
				Excerpt: excerpt(c.Text, 50),
			})
			continue
		}
		readiness.Ready++
		ordered = append(ordered, chunkAudio{chunk: c, audio: v.Audio})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].chunk.Order < ordered[j].chunk.Order
	})
	readiness.CanExport = readiness.Total > 0 && len(readiness.Missing) == 0
	return proj, ordered, readiness, nil
}

// CheckReadiness reports whether the project can be exported. Whitespace-only
// chunks are ignored; every remaining chunk must have an active variant with
// audio, and at least one such chunk must exist.
func (a *Assembler) CheckReadiness(ctx context.Context, projectID string) (Readiness, error) {
	_, _, readiness, err := a.collect(ctx, projectID)
	return readiness, err
}

// Artifact is a finished export: the bytes plus the filename and content
// type to serve them under.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Concatenated joins all active variant audio, in chunk order, into one
// audio file via the concatenation provider. Returns [*NotReadyError] when
// any text-bearing chunk lacks audio.
func (a *Assembler) Concatenated(ctx context.Context, projectID string) (Artifact, error) {
	proj, ordered, readiness, err := a.collect(ctx, projectID)
	if err != nil {
		return Artifact{}, err
	}
	if !readiness.CanExport {
		return Artifact{}, &NotReadyError{Readiness: readiness}
	}

	name := truncate(sanitizeName(proj.Name), 50) + "_audiobook.mp3"
	files := make([][]byte, len(ordered))
	for i, ca := range ordered {
		files[i] = ca.audio
	}

	start := time.Now()
	data, err := a.concat.Concatenate(ctx, files, name)
	if a.metrics != nil {
		a.metrics.RecordExport(ctx, "concat", time.Since(start), err == nil)
		status := "ok"
		if err != nil {
			status = "error"
			a.metrics.RecordProviderError(ctx, "concat")
		}
		a.metrics.RecordProviderRequest(ctx, "concat", status)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("concatenating %d chunks: %w", len(files), err)
	}

	slog.Info("export assembled",
		"project_id", projectID,
		"chunks", len(files),
		"bytes", len(data),
	)
	return Artifact{Filename: name, ContentType: "audio/mpeg", Data: data}, nil
}

// Archive packs each chunk's active variant audio into a zip, one numbered
// mp3 per chunk. Unlike Concatenated it does not need a provider; it still
// requires every text-bearing chunk to have audio.
func (a *Assembler) Archive(ctx context.Context, projectID string) (Artifact, error) {
	proj, ordered, readiness, err := a.collect(ctx, projectID)
	if err != nil {
		return Artifact{}, err
	}
	if !readiness.CanExport {
		return Artifact{}, &NotReadyError{Readiness: readiness}
	}

	start := time.Now()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, ca := range ordered {
		entry := fmt.Sprintf("%03d_%s.mp3", ca.chunk.Order+1, entryName(ca.chunk.Text))
		w, err := zw.Create(entry)
		if err != nil {
			return Artifact{}, fmt.Errorf("creating archive entry %q: %w", entry, err)
		}
		if _, err := w.Write(ca.audio); err != nil {
			return Artifact{}, fmt.Errorf("writing archive entry %q: %w", entry, err)
		}
	}
	if err := zw.Close(); err != nil {
		return Artifact{}, fmt.Errorf("finalizing archive: %w", err)
	}

	if a.metrics != nil {
		a.metrics.RecordExport(ctx, "archive", time.Since(start), true)
	}
	slog.Info("archive assembled",
		"project_id", projectID,
		"entries", len(ordered),
		"bytes", buf.Len(),
	)
	return Artifact{
		Filename:    sanitizeName(proj.Name) + "_chunks.zip",
		ContentType: "application/zip",
		Data:        buf.Bytes(),
	}, nil
}

var (
	nameStrip   = regexp.MustCompile(`[^a-zA-Z0-9\s-]`)
	entryStrip  = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// sanitizeName makes a project name filesystem-safe: strips everything but
// letters, digits, spaces and hyphens, then collapses whitespace runs to
// underscores.
func sanitizeName(name string) string {
	return whitespace.ReplaceAllString(nameStrip.ReplaceAllString(name, ""), "_")
}

// entryName derives an archive entry stem from chunk text: first 30 chars,
// stripped to letters, digits and spaces, whitespace to underscores, capped
// at 20 chars.
func entryName(text string) string {
	s := truncate(text, 30)
	s = whitespace.ReplaceAllString(entryStrip.ReplaceAllString(s, ""), "_")
	return truncate(s, 20)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// excerpt returns the first n characters of text with an ellipsis when
// truncated.
func excerpt(text string, n int) string {
	if len(text) > n {
		return text[:n] + "..."
	}
	return text
}
