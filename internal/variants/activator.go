package variants

import (
	"context"
	"log/slog"

	"github.com/narravox/narravox/internal/project"
)

// Activator switches and removes variants while preserving the
// exactly-one-active rule per chunk.
type Activator struct {
	store project.Store
}

// NewActivator creates an Activator over the given store.
func NewActivator(store project.Store) *Activator {
	return &Activator{store: store}
}

// Activate makes the variant the chunk's active one, deactivating its
// siblings. Only completed variants that carry audio may be activated;
// anything else returns [project.ErrVariantNotReady].
func (a *Activator) Activate(ctx context.Context, variantID string) (project.AudioVariant, error) {
	if err := a.store.ActivateVariant(ctx, variantID); err != nil {
		return project.AudioVariant{}, err
	}
	variant, err := a.store.GetVariant(ctx, variantID)
	if err != nil {
		return project.AudioVariant{}, err
	}
	slog.Info("variant activated",
		"chunk_id", variant.ChunkID,
		"variant_number", variant.VariantNumber,
	)
	return variant, nil
}

// Delete removes the variant and renumbers the chunk's survivors to a
// contiguous 1..n. When the deleted variant was active, the lowest-numbered
// survivor is promoted so the chunk keeps exactly one active variant for as
// long as it has any.
func (a *Activator) Delete(ctx context.Context, variantID string) ([]project.AudioVariant, error) {
	variant, err := a.store.GetVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if err := a.store.DeleteVariant(ctx, variantID); err != nil {
		return nil, err
	}
	slog.Info("variant deleted",
		"chunk_id", variant.ChunkID,
		"variant_number", variant.VariantNumber,
		"was_active", variant.IsActive,
	)
	return a.store.ListVariants(ctx, variant.ChunkID)
}
