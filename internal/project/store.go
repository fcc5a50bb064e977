package project

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// Sentinel errors shared by all Store implementations. Callers match them
// with errors.Is to distinguish not-found, precondition, and validation
// failures from persistence faults.
var (
	// ErrProjectNotFound is returned when no project with the given id exists.
	ErrProjectNotFound = errors.New("project not found")

	// ErrChunkNotFound is returned when no chunk with the given id exists.
	ErrChunkNotFound = errors.New("chunk not found")

	// ErrVariantNotFound is returned when no variant with the given id exists.
	ErrVariantNotFound = errors.New("audio variant not found")

	// ErrVariantLimit is returned by CreateVariant when the chunk already
	// holds the maximum number of variants.
	ErrVariantLimit = errors.New("variant limit reached for chunk")

	// ErrVariantNotReady is returned by ActivateVariant when the target is
	// not in done state or has no audio payload.
	ErrVariantNotReady = errors.New("variant has no generated audio")

	// ErrInvalidSettings wraps voice-settings range violations.
	ErrInvalidSettings = errors.New("invalid voice settings")

	// ErrInvalidName wraps project-name validation failures.
	ErrInvalidName = errors.New("invalid project name")
)

// ChunkUpdate rewrites one persisted chunk during reconciliation. When
// PurgeVariants is set the chunk's text changed, so every audio variant it
// owns is deleted in the same transaction.
type ChunkUpdate struct {
	ID            string
	Text          string
	Order         int
	PurgeVariants bool
}

// ChunkCreate inserts a new chunk at the given order during reconciliation.
type ChunkCreate struct {
	Text  string
	Order int
}

// ChunkPlan is the set of mutations one reconciliation applies atomically:
// either every operation lands, or none do.
type ChunkPlan struct {
	Updates   []ChunkUpdate
	Creates   []ChunkCreate
	DeleteIDs []string
}

// Empty reports whether the plan contains no mutations.
func (p ChunkPlan) Empty() bool {
	return len(p.Updates) == 0 && len(p.Creates) == 0 && len(p.DeleteIDs) == 0
}

// Store is the persistence boundary for projects, chunks, and variants.
//
// All implementations must be safe for concurrent use and must keep the
// domain invariants transactional: reconciliation plans apply atomically,
// variant numbers are allocated from the persisted count under
// serialization, and exclusive activation plus delete-with-renumbering each
// happen as a single atomic step per chunk.
type Store interface {
	// CreateProject inserts a new project with the given display name.
	CreateProject(ctx context.Context, name string) (Project, error)

	// GetProject returns a project by id, or [ErrProjectNotFound].
	GetProject(ctx context.Context, id string) (Project, error)

	// ListProjects returns all projects, newest first.
	ListProjects(ctx context.Context) ([]Project, error)

	// RenameProject updates the display name and the updatedAt timestamp.
	RenameProject(ctx context.Context, id, name string) error

	// SetProjectVoice replaces the project's default voice id and settings.
	// A nil voiceID clears the configuration.
	SetProjectVoice(ctx context.Context, id string, voiceID *string, settings *VoiceSettings) error

	// TouchProject bumps the project's updatedAt timestamp.
	TouchProject(ctx context.Context, id string) error

	// DeleteProject removes the project and cascades to all of its chunks
	// and their variants.
	DeleteProject(ctx context.Context, id string) error

	// GetChunk returns a chunk by id, or [ErrChunkNotFound].
	GetChunk(ctx context.Context, id string) (Chunk, error)

	// ListChunks returns the project's chunks in ascending order.
	ListChunks(ctx context.Context, projectID string) ([]Chunk, error)

	// SetChunkVoice updates a chunk's custom-voice override. When useCustom
	// is false the voice id and settings are cleared.
	SetChunkVoice(ctx context.Context, id string, useCustom bool, voiceID *string, settings *VoiceSettings) error

	// ApplyChunkPlan applies one reconciliation plan atomically, bumps the
	// project's updatedAt, and returns the reconciled chunk list in order.
	ApplyChunkPlan(ctx context.Context, projectID string, plan ChunkPlan) ([]Chunk, error)

	// ListVariants returns a chunk's variant summaries in variant-number
	// order. Audio payloads are not loaded; HasAudio reports their presence.
	ListVariants(ctx context.Context, chunkID string) ([]AudioVariant, error)

	// ListProjectVariants returns variant summaries for every chunk of the
	// project, used to annotate chunk lists in one query.
	ListProjectVariants(ctx context.Context, projectID string) ([]AudioVariant, error)

	// GetVariant returns a variant summary by id, or [ErrVariantNotFound].
	GetVariant(ctx context.Context, id string) (AudioVariant, error)

	// GetVariantAudio returns a variant's audio payload. It returns
	// [ErrVariantNotFound] for an unknown id and [ErrVariantNotReady] when
	// the variant has no payload yet.
	GetVariantAudio(ctx context.Context, id string) ([]byte, error)

	// CreateVariant allocates the chunk's next variant number from the
	// persisted count, enforced against maxVariants, and inserts the record
	// with status processing, progress 0, and the given settings snapshot.
	// Number allocation is serialized per chunk so concurrent calls never
	// produce duplicates. Returns [ErrVariantLimit] when the cap is reached.
	CreateVariant(ctx context.Context, chunkID, usedVoiceID string, usedSettings VoiceSettings, maxVariants int) (AudioVariant, error)

	// MarkVariantDone stores the audio payload and moves the variant to done
	// with progress 100. When activate is set the variant also becomes the
	// chunk's active variant. Returns [ErrVariantNotFound] if the variant
	// was removed while synthesis was in flight; callers treat that as a
	// discard, not a failure.
	MarkVariantDone(ctx context.Context, id string, audio []byte, activate bool) error

	// MarkVariantError moves the variant to error state with the given
	// human-readable message. Returns [ErrVariantNotFound] if the variant
	// was removed while synthesis was in flight.
	MarkVariantError(ctx context.Context, id, message string) error

	// ActivateVariant makes the variant its chunk's only active variant,
	// atomically clearing the flag on all siblings. It fails with
	// [ErrVariantNotReady] unless the variant is done with audio present.
	ActivateVariant(ctx context.Context, id string) error

	// DeleteVariant removes the variant, promotes the lowest-numbered
	// survivor to active if the removed variant was active, and renumbers
	// the survivors to a contiguous 1-based sequence, all atomically.
	DeleteVariant(ctx context.Context, id string) error

	// ListActiveVariants returns the active variant of every chunk in the
	// project, with audio payloads loaded, in chunk order.
	ListActiveVariants(ctx context.Context, projectID string) ([]AudioVariant, error)
}

// NewID returns a random 16-byte hex identifier for a project, chunk, or
// variant row.
func NewID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("project: generate id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
