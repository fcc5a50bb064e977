// Package chunks synchronises a project's persisted chunk list with a freshly
// submitted full text. Each line of the text is one chunk; reconciliation
// computes the minimal set of chunk mutations and applies them atomically.
package chunks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/narravox/narravox/internal/observe"
	"github.com/narravox/narravox/internal/project"
)

// Reconciler aligns persisted chunks with submitted full text.
type Reconciler struct {
	store   project.Store
	metrics *observe.Metrics
}

// NewReconciler creates a Reconciler on the given store. metrics may be nil.
func NewReconciler(store project.Store, metrics *observe.Metrics) *Reconciler {
	return &Reconciler{store: store, metrics: metrics}
}

// SplitText splits fullText into its chunk line sequence. Empty input yields
// a single empty line: a project always has at least one chunk. No trimming
// or collapsing happens; every blank line is its own chunk.
func SplitText(fullText string) []string {
	return strings.Split(fullText, "\n")
}

// BuildPlan computes the mutations needed to make existing match the lines of
// fullText. The diff is positional: line i is matched against the chunk at
// index i, regardless of content. Inserting a line near the top therefore
// shifts every following line and invalidates its audio; this matches the
// editor's save semantics, where chunk identity is the line position.
//
// existing must be in ascending order.
func BuildPlan(existing []project.Chunk, fullText string) project.ChunkPlan {
	lines := SplitText(fullText)

	var plan project.ChunkPlan
	for i, line := range lines {
		if i >= len(existing) {
			plan.Creates = append(plan.Creates, project.ChunkCreate{Text: line, Order: i})
			continue
		}
		cur := existing[i]
		if cur.Text != line {
			// Text changed: any existing audio no longer matches it.
			plan.Updates = append(plan.Updates, project.ChunkUpdate{
				ID:            cur.ID,
				Text:          line,
				Order:         i,
				PurgeVariants: true,
			})
		} else if cur.Order != i {
			plan.Updates = append(plan.Updates, project.ChunkUpdate{
				ID:    cur.ID,
				Text:  line,
				Order: i,
			})
		}
	}
	for _, cur := range existing[min(len(lines), len(existing)):] {
		plan.DeleteIDs = append(plan.DeleteIDs, cur.ID)
	}
	return plan
}

// Reconcile applies fullText to the project's chunk list as one atomic unit
// and returns the annotated reconciled chunks in order. A submission
// identical to the persisted state produces zero mutations but still bumps
// the project's updatedAt.
func (r *Reconciler) Reconcile(ctx context.Context, projectID, fullText string) ([]project.ChunkView, error) {
	start := time.Now()

	existing, err := r.store.ListChunks(ctx, projectID)
	if err != nil {
		return nil, err
	}

	plan := BuildPlan(existing, fullText)

	var reconciled []project.Chunk
	if plan.Empty() {
		reconciled = existing
		if err := r.store.TouchProject(ctx, projectID); err != nil {
			return nil, err
		}
	} else {
		reconciled, err = r.store.ApplyChunkPlan(ctx, projectID, plan)
		if err != nil {
			return nil, fmt.Errorf("reconcile project %q: %w", projectID, err)
		}
	}

	variants, err := r.store.ListProjectVariants(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.RecordReconcile(ctx, time.Since(start), len(plan.Updates), len(plan.Creates), len(plan.DeleteIDs))
	}
	slog.Debug("chunks reconciled",
		"project_id", projectID,
		"chunks", len(reconciled),
		"updated", len(plan.Updates),
		"created", len(plan.Creates),
		"deleted", len(plan.DeleteIDs),
	)

	return project.AnnotateChunks(reconciled, variants), nil
}

// FullText reconstructs the project's full text by joining its chunk lines
// and returns it together with the annotated chunk list.
func (r *Reconciler) FullText(ctx context.Context, projectID string) (string, []project.ChunkView, error) {
	chunks, err := r.store.ListChunks(ctx, projectID)
	if err != nil {
		return "", nil, err
	}
	variants, err := r.store.ListProjectVariants(ctx, projectID)
	if err != nil {
		return "", nil, err
	}

	lines := make([]string, 0, len(chunks))
	for _, c := range chunks {
		lines = append(lines, c.Text)
	}
	return strings.Join(lines, "\n"), project.AnnotateChunks(chunks, variants), nil
}
