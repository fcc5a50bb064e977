// Package project defines the NarraVox domain model: projects, their
// line-based text chunks, and the audio variants synthesized for each chunk.
//
// A project owns an ordered list of chunks; the chunk order is always the
// zero-based index of the corresponding line in the project's full text.
// Each chunk owns a contiguous, 1-based numbered list of audio variants, of
// which at most one is active. All mutation goes through a [Store]
// implementation so that the ordering, numbering, and activation invariants
// hold under concurrent use.
package project

import "time"

// DefaultModel is the ElevenLabs model used when no settings are configured.
const DefaultModel = "eleven_multilingual_v2"

// MaxVariantsPerChunk is the default cap on audio variants for one chunk.
// Variants in error state count against the cap until deleted.
const MaxVariantsPerChunk = 5

// VariantStatus is the lifecycle state of an audio variant.
type VariantStatus string

const (
	// StatusQueued marks a variant that is waiting for a generation slot.
	StatusQueued VariantStatus = "queued"

	// StatusProcessing marks a variant whose synthesis call is in flight.
	StatusProcessing VariantStatus = "processing"

	// StatusDone marks a variant with a complete audio payload.
	StatusDone VariantStatus = "done"

	// StatusError marks a variant whose synthesis failed. The record is kept
	// so the failure message stays visible; it must be deleted explicitly to
	// free its slot.
	StatusError VariantStatus = "error"
)

// IsGenerating reports whether the status counts as "generation in progress"
// for chunk annotations.
func (s VariantStatus) IsGenerating() bool {
	return s == StatusQueued || s == StatusProcessing
}

// VoiceSettings is the structured voice configuration shared by project
// defaults, per-chunk overrides, and variant snapshots. Percentage fields use
// the 0–100 range shown in the editor; conversion to the provider's 0–1
// fractions happens at synthesis time.
type VoiceSettings struct {
	Stability    float64 `json:"stability" yaml:"stability"`
	Similarity   float64 `json:"similarity" yaml:"similarity"`
	Style        float64 `json:"style" yaml:"style"`
	Speed        float64 `json:"speed" yaml:"speed"`
	Model        string  `json:"model" yaml:"model"`
	SpeakerBoost bool    `json:"speakerBoost" yaml:"speaker_boost"`
}

// DefaultVoiceSettings returns the documented fallback settings used when a
// project or chunk has a voice configured but no explicit settings.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:    50,
		Similarity:   75,
		Style:        0,
		Speed:        1.0,
		Model:        DefaultModel,
		SpeakerBoost: true,
	}
}

// Project is a narration project: a named text with default voice
// configuration. Deleting a project cascades to its chunks and variants.
type Project struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	VoiceID       *string        `json:"voiceId"`
	VoiceSettings *VoiceSettings `json:"voiceSettings"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Chunk is one line of a project's text, the unit of audio generation.
// Order is the zero-based line index; it is contiguous within a project.
type Chunk struct {
	ID                  string         `json:"id"`
	ProjectID           string         `json:"projectId"`
	Text                string         `json:"text"`
	Order               int            `json:"order"`
	UseCustomSettings   bool           `json:"useCustomSettings"`
	CustomVoiceID       *string        `json:"customVoiceId"`
	CustomVoiceSettings *VoiceSettings `json:"customVoiceSettings"`
}

// AudioVariant is one synthesized audio attempt for a chunk.
//
// VariantNumber is 1-based and contiguous within the chunk; deletion
// renumbers the survivors so the number always reads as "Nth surviving
// attempt". The voice id and settings are snapshotted at generation time and
// never change afterwards.
//
// Audio is populated only by [Store.GetVariantAudio] and
// [Store.ListActiveVariants]; summary reads leave it nil and report payload
// presence through HasAudio.
type AudioVariant struct {
	ID            string        `json:"id"`
	ChunkID       string        `json:"chunkId"`
	VariantNumber int           `json:"variantNumber"`
	Status        VariantStatus `json:"status"`
	Progress      int           `json:"progress"`
	IsActive      bool          `json:"isActive"`
	ErrorMessage  *string       `json:"errorMessage"`
	UsedVoiceID   string        `json:"usedVoiceId"`
	UsedSettings  VoiceSettings `json:"usedVoiceSettings"`
	HasAudio      bool          `json:"hasAudio"`
	Audio         []byte        `json:"-"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// ChunkView is a chunk annotated with its variant state, as returned to the
// editor after reconciliation or a full-text read.
type ChunkView struct {
	ID                  string         `json:"id"`
	Text                string         `json:"text"`
	Order               int            `json:"order"`
	HasAudio            bool           `json:"hasAudio"`
	IsGenerating        bool           `json:"isGenerating"`
	ActiveVariantID     *string        `json:"activeVariantId"`
	VariantsCount       int            `json:"variantsCount"`
	UseCustomSettings   bool           `json:"useCustomSettings"`
	CustomVoiceID       *string        `json:"customVoiceId"`
	CustomVoiceSettings *VoiceSettings `json:"customVoiceSettings"`
}

// AnnotateChunks builds the editor view of chunks from the persisted chunk
// list and the project's variant summaries. Chunks must be in order; variants
// are grouped by chunk id.
func AnnotateChunks(chunks []Chunk, variants []AudioVariant) []ChunkView {
	byChunk := make(map[string][]AudioVariant, len(chunks))
	for _, v := range variants {
		byChunk[v.ChunkID] = append(byChunk[v.ChunkID], v)
	}

	views := make([]ChunkView, 0, len(chunks))
	for _, c := range chunks {
		view := ChunkView{
			ID:                  c.ID,
			Text:                c.Text,
			Order:               c.Order,
			UseCustomSettings:   c.UseCustomSettings,
			CustomVoiceID:       c.CustomVoiceID,
			CustomVoiceSettings: c.CustomVoiceSettings,
		}
		for _, v := range byChunk[c.ID] {
			view.VariantsCount++
			if v.Status == StatusDone {
				view.HasAudio = true
			}
			if v.Status.IsGenerating() {
				view.IsGenerating = true
			}
			if v.IsActive {
				id := v.ID
				view.ActiveVariantID = &id
			}
		}
		views = append(views, view)
	}
	return views
}
