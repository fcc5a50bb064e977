// Package variants owns the audio-variant lifecycle: generation through the
// synthesis provider, the processing/done/error state machine, exclusive
// activation, and deletion with renumbering.
package variants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/narravox/narravox/internal/observe"
	"github.com/narravox/narravox/internal/project"
	"github.com/narravox/narravox/pkg/provider/tts"
)

var (
	// ErrNoVoiceConfigured is returned when neither the chunk nor its
	// project has a voice id configured. This is a precondition failure:
	// no variant record is created.
	ErrNoVoiceConfigured = errors.New("no voice configured for chunk or project")

	// ErrEmptyChunkText is returned when generation is requested for a
	// chunk whose text is empty or whitespace-only.
	ErrEmptyChunkText = errors.New("chunk has no text to synthesize")

	// ErrNothingToGenerate is returned by bulk generation when the chunk
	// already holds at least the requested number of variants while still
	// being below the per-chunk cap.
	ErrNothingToGenerate = errors.New("chunk already has the requested number of variants")
)

// Generator orchestrates synthesis-provider calls to produce audio variants.
type Generator struct {
	store       project.Store
	provider    tts.Provider
	metrics     *observe.Metrics
	maxVariants int
}

// NewGenerator creates a Generator. maxVariants caps the variants one chunk
// may hold; zero or negative falls back to [project.MaxVariantsPerChunk].
// metrics may be nil.
func NewGenerator(store project.Store, provider tts.Provider, metrics *observe.Metrics, maxVariants int) *Generator {
	if maxVariants <= 0 {
		maxVariants = project.MaxVariantsPerChunk
	}
	return &Generator{
		store:       store,
		provider:    provider,
		metrics:     metrics,
		maxVariants: maxVariants,
	}
}

// MaxVariants returns the per-chunk variant cap in effect.
func (g *Generator) MaxVariants() int { return g.maxVariants }

// Resolved is the effective voice configuration for one generation.
type Resolved struct {
	VoiceID  string
	Settings project.VoiceSettings
}

// ResolveSettings determines which voice and settings a chunk generation
// uses: the chunk's custom voice when the override is enabled and carries a
// voice id, otherwise the project default, with the documented default
// settings filled in when none are stored. Returns [ErrNoVoiceConfigured]
// when no voice id is resolvable either way.
func ResolveSettings(c project.Chunk, p project.Project) (Resolved, error) {
	if c.UseCustomSettings && c.CustomVoiceID != nil && *c.CustomVoiceID != "" {
		settings := project.DefaultVoiceSettings()
		if c.CustomVoiceSettings != nil {
			settings = *c.CustomVoiceSettings
		}
		return Resolved{VoiceID: *c.CustomVoiceID, Settings: settings}, nil
	}
	if p.VoiceID == nil || *p.VoiceID == "" {
		return Resolved{}, ErrNoVoiceConfigured
	}
	settings := project.DefaultVoiceSettings()
	if p.VoiceSettings != nil {
		settings = *p.VoiceSettings
	}
	return Resolved{VoiceID: *p.VoiceID, Settings: settings}, nil
}

// providerSettings converts editor-range settings (percentages) into the
// provider's 0–1 fractions.
func providerSettings(s project.VoiceSettings) tts.SynthesisSettings {
	model := s.Model
	if model == "" {
		model = project.DefaultModel
	}
	return tts.SynthesisSettings{
		Stability:       s.Stability / 100,
		SimilarityBoost: s.Similarity / 100,
		Style:           s.Style / 100,
		Speed:           s.Speed,
		ModelID:         model,
		UseSpeakerBoost: s.SpeakerBoost,
	}
}

// Generate produces one new variant for the chunk. The variant record is
// created in processing state before the provider call; on success it moves
// to done (and becomes active if it is the chunk's first variant), on
// provider failure it stays persisted in error state with the provider's
// message and the error is returned alongside the summary.
func (g *Generator) Generate(ctx context.Context, chunkID string) (project.AudioVariant, error) {
	chunk, err := g.store.GetChunk(ctx, chunkID)
	if err != nil {
		return project.AudioVariant{}, err
	}
	if strings.TrimSpace(chunk.Text) == "" {
		return project.AudioVariant{}, ErrEmptyChunkText
	}
	proj, err := g.store.GetProject(ctx, chunk.ProjectID)
	if err != nil {
		return project.AudioVariant{}, err
	}
	resolved, err := ResolveSettings(chunk, proj)
	if err != nil {
		return project.AudioVariant{}, err
	}

	variant, err := g.store.CreateVariant(ctx, chunkID, resolved.VoiceID, resolved.Settings, g.maxVariants)
	if err != nil {
		if errors.Is(err, project.ErrVariantLimit) {
			return project.AudioVariant{}, fmt.Errorf("%w (cap %d)", project.ErrVariantLimit, g.maxVariants)
		}
		return project.AudioVariant{}, err
	}

	return g.synthesize(ctx, chunk, variant, resolved)
}

// synthesize runs the provider call for an already created variant record
// and persists the outcome.
func (g *Generator) synthesize(ctx context.Context, chunk project.Chunk, variant project.AudioVariant, resolved Resolved) (project.AudioVariant, error) {
	if g.metrics != nil {
		g.metrics.GenerationStarted(ctx)
		defer g.metrics.GenerationFinished(ctx)
	}

	start := time.Now()
	audio, synthErr := g.provider.Synthesize(ctx, tts.SynthesisRequest{
		Text:     chunk.Text,
		VoiceID:  resolved.VoiceID,
		Settings: providerSettings(resolved.Settings),
	})
	if g.metrics != nil {
		g.metrics.RecordSynthesis(ctx, time.Since(start), synthErr == nil)
		status := "ok"
		if synthErr != nil {
			status = "error"
			g.metrics.RecordProviderError(ctx, "tts")
		}
		g.metrics.RecordProviderRequest(ctx, "tts", status)
	}

	if synthErr != nil {
		message := "audio generation failed"
		if pe, ok := tts.AsProviderError(synthErr); ok && pe.Detail != "" {
			message = pe.Detail
		}
		if err := g.store.MarkVariantError(ctx, variant.ID, message); err != nil {
			if errors.Is(err, project.ErrVariantNotFound) {
				// Chunk was deleted mid-flight; the variant went with it.
				slog.Debug("discarding error for removed variant", "variant_id", variant.ID)
				return project.AudioVariant{}, synthErr
			}
			return project.AudioVariant{}, err
		}
		slog.Warn("variant generation failed",
			"chunk_id", chunk.ID,
			"variant_number", variant.VariantNumber,
			"err", synthErr,
		)
		updated, err := g.store.GetVariant(ctx, variant.ID)
		if err != nil {
			return project.AudioVariant{}, err
		}
		return updated, synthErr
	}

	// The chunk's first-ever variant becomes active by default; later ones
	// must be activated explicitly.
	activate := variant.VariantNumber == 1
	if err := g.store.MarkVariantDone(ctx, variant.ID, audio, activate); err != nil {
		if errors.Is(err, project.ErrVariantNotFound) {
			slog.Debug("discarding audio for removed variant", "variant_id", variant.ID)
			return project.AudioVariant{}, project.ErrChunkNotFound
		}
		return project.AudioVariant{}, err
	}

	slog.Info("variant generated",
		"chunk_id", chunk.ID,
		"variant_number", variant.VariantNumber,
		"voice_id", resolved.VoiceID,
		"bytes", len(audio),
	)
	return g.store.GetVariant(ctx, variant.ID)
}

// BulkResult reports the outcome of a multi-variant generation request.
type BulkResult struct {
	// Requested is how many new variants the call attempted to create.
	Requested int `json:"requested"`

	// Succeeded counts variants that reached done state.
	Succeeded int `json:"succeeded"`

	// Failed counts variants that ended in error state or could not be
	// created at all.
	Failed int `json:"failed"`

	// Variants holds the summaries of all variants touched by this call,
	// in variant-number order.
	Variants []project.AudioVariant `json:"variants"`
}

// GenerateUpTo generates variants until the chunk holds maxTotal of them
// (bounded by the per-chunk cap). Provider calls run concurrently; each
// variant's number is allocated from the persisted count immediately before
// its own creation, so concurrent allocations never collide. One variant's
// provider failure does not abort the others. Returns [ErrNothingToGenerate]
// when the chunk already holds maxTotal variants while below the cap, and
// [project.ErrVariantLimit] when it is at the cap.
func (g *Generator) GenerateUpTo(ctx context.Context, chunkID string, maxTotal int) (BulkResult, error) {
	chunk, err := g.store.GetChunk(ctx, chunkID)
	if err != nil {
		return BulkResult{}, err
	}
	if strings.TrimSpace(chunk.Text) == "" {
		return BulkResult{}, ErrEmptyChunkText
	}
	proj, err := g.store.GetProject(ctx, chunk.ProjectID)
	if err != nil {
		return BulkResult{}, err
	}
	resolved, err := ResolveSettings(chunk, proj)
	if err != nil {
		return BulkResult{}, err
	}

	existing, err := g.store.ListVariants(ctx, chunkID)
	if err != nil {
		return BulkResult{}, err
	}
	if maxTotal > g.maxVariants {
		maxTotal = g.maxVariants
	}
	toCreate := maxTotal - len(existing)
	if toCreate <= 0 {
		if len(existing) >= g.maxVariants {
			return BulkResult{}, fmt.Errorf("%w (cap %d)", project.ErrVariantLimit, g.maxVariants)
		}
		return BulkResult{}, fmt.Errorf("%w (have %d, requested %d)", ErrNothingToGenerate, len(existing), maxTotal)
	}

	var (
		result      BulkResult
		grp, grpCtx = errgroup.WithContext(ctx)
		outcomes    = make([]error, toCreate)
	)
	result.Requested = toCreate

	for i := 0; i < toCreate; i++ {
		grp.Go(func() error {
			// Each variant allocates its own number from the store and
			// records its own outcome; failures stay per-variant.
			variant, err := g.store.CreateVariant(grpCtx, chunkID, resolved.VoiceID, resolved.Settings, g.maxVariants)
			if err != nil {
				outcomes[i] = err
				return nil
			}
			if _, err := g.synthesize(grpCtx, chunk, variant, resolved); err != nil {
				outcomes[i] = err
			}
			return nil
		})
	}
	// Goroutines never return errors; Wait is only a join point.
	_ = grp.Wait()

	for _, err := range outcomes {
		if err != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}

	variants, err := g.store.ListVariants(ctx, chunkID)
	if err != nil {
		return BulkResult{}, err
	}
	result.Variants = variants
	return result, nil
}
