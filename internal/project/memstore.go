package project

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store]. It is the
// reference implementation for the domain invariants and backs the service
// tests. The zero value is not usable; call [NewMemStore].
type MemStore struct {
	mu       sync.RWMutex
	projects map[string]*Project
	chunks   map[string]*Chunk
	variants map[string]*AudioVariant
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		projects: make(map[string]*Project),
		chunks:   make(map[string]*Chunk),
		variants: make(map[string]*AudioVariant),
	}
}

// CreateProject implements [Store.CreateProject].
func (s *MemStore) CreateProject(_ context.Context, name string) (Project, error) {
	if err := ValidateProjectName(name); err != nil {
		return Project{}, err
	}
	id, err := NewID()
	if err != nil {
		return Project{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p := &Project{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
	s.projects[id] = p
	return *p, nil
}

// GetProject implements [Store.GetProject].
func (s *MemStore) GetProject(_ context.Context, id string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return Project{}, ErrProjectNotFound
	}
	return *p, nil
}

// ListProjects implements [Store.ListProjects].
func (s *MemStore) ListProjects(_ context.Context) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// RenameProject implements [Store.RenameProject].
func (s *MemStore) RenameProject(_ context.Context, id, name string) error {
	if err := ValidateProjectName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	p.Name = name
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// SetProjectVoice implements [Store.SetProjectVoice].
func (s *MemStore) SetProjectVoice(_ context.Context, id string, voiceID *string, settings *VoiceSettings) error {
	if settings != nil {
		if err := settings.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	p.VoiceID = copyStr(voiceID)
	p.VoiceSettings = copySettings(settings)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// TouchProject implements [Store.TouchProject].
func (s *MemStore) TouchProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteProject implements [Store.DeleteProject].
func (s *MemStore) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return ErrProjectNotFound
	}
	delete(s.projects, id)
	for cid, c := range s.chunks {
		if c.ProjectID != id {
			continue
		}
		delete(s.chunks, cid)
		s.purgeVariantsLocked(cid)
	}
	return nil
}

// GetChunk implements [Store.GetChunk].
func (s *MemStore) GetChunk(_ context.Context, id string) (Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chunks[id]
	if !ok {
		return Chunk{}, ErrChunkNotFound
	}
	return *c, nil
}

// ListChunks implements [Store.ListChunks].
func (s *MemStore) ListChunks(_ context.Context, projectID string) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, ErrProjectNotFound
	}
	return s.chunksLocked(projectID), nil
}

// SetChunkVoice implements [Store.SetChunkVoice].
func (s *MemStore) SetChunkVoice(_ context.Context, id string, useCustom bool, voiceID *string, settings *VoiceSettings) error {
	if settings != nil {
		if err := settings.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chunks[id]
	if !ok {
		return ErrChunkNotFound
	}
	c.UseCustomSettings = useCustom
	if useCustom {
		c.CustomVoiceID = copyStr(voiceID)
		c.CustomVoiceSettings = copySettings(settings)
	} else {
		c.CustomVoiceID = nil
		c.CustomVoiceSettings = nil
	}
	return nil
}

// ApplyChunkPlan implements [Store.ApplyChunkPlan]. The whole plan is applied
// under one lock hold, so readers never observe a partially reconciled
// project.
func (s *MemStore) ApplyChunkPlan(_ context.Context, projectID string, plan ChunkPlan) ([]Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return nil, ErrProjectNotFound
	}

	// Validate every entry and allocate the create IDs before the first
	// mutation, so a failing entry cannot leave a half-applied plan behind.
	for _, u := range plan.Updates {
		if c, ok := s.chunks[u.ID]; !ok || c.ProjectID != projectID {
			return nil, ErrChunkNotFound
		}
	}
	for _, id := range plan.DeleteIDs {
		if c, ok := s.chunks[id]; !ok || c.ProjectID != projectID {
			return nil, ErrChunkNotFound
		}
	}
	createIDs := make([]string, len(plan.Creates))
	for i := range plan.Creates {
		id, err := NewID()
		if err != nil {
			return nil, err
		}
		createIDs[i] = id
	}

	for _, u := range plan.Updates {
		c := s.chunks[u.ID]
		c.Text = u.Text
		c.Order = u.Order
		if u.PurgeVariants {
			s.purgeVariantsLocked(u.ID)
		}
	}
	for i, cr := range plan.Creates {
		id := createIDs[i]
		s.chunks[id] = &Chunk{ID: id, ProjectID: projectID, Text: cr.Text, Order: cr.Order}
	}
	for _, id := range plan.DeleteIDs {
		delete(s.chunks, id)
		s.purgeVariantsLocked(id)
	}

	p.UpdatedAt = time.Now().UTC()
	return s.chunksLocked(projectID), nil
}

// ListVariants implements [Store.ListVariants].
func (s *MemStore) ListVariants(_ context.Context, chunkID string) ([]AudioVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.chunks[chunkID]; !ok {
		return nil, ErrChunkNotFound
	}
	return s.variantsLocked(chunkID), nil
}

// ListProjectVariants implements [Store.ListProjectVariants].
func (s *MemStore) ListProjectVariants(_ context.Context, projectID string) ([]AudioVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, ErrProjectNotFound
	}
	var out []AudioVariant
	for _, c := range s.chunks {
		if c.ProjectID == projectID {
			out = append(out, s.variantsLocked(c.ID)...)
		}
	}
	return out, nil
}

// GetVariant implements [Store.GetVariant].
func (s *MemStore) GetVariant(_ context.Context, id string) (AudioVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.variants[id]
	if !ok {
		return AudioVariant{}, ErrVariantNotFound
	}
	return summary(*v), nil
}

// GetVariantAudio implements [Store.GetVariantAudio].
func (s *MemStore) GetVariantAudio(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.variants[id]
	if !ok {
		return nil, ErrVariantNotFound
	}
	if len(v.Audio) == 0 {
		return nil, ErrVariantNotReady
	}
	out := make([]byte, len(v.Audio))
	copy(out, v.Audio)
	return out, nil
}

// CreateVariant implements [Store.CreateVariant]. The count is read and the
// record inserted under one lock hold, which serializes number allocation.
func (s *MemStore) CreateVariant(_ context.Context, chunkID, usedVoiceID string, usedSettings VoiceSettings, maxVariants int) (AudioVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chunks[chunkID]; !ok {
		return AudioVariant{}, ErrChunkNotFound
	}
	count := 0
	for _, v := range s.variants {
		if v.ChunkID == chunkID {
			count++
		}
	}
	if count >= maxVariants {
		return AudioVariant{}, ErrVariantLimit
	}

	id, err := NewID()
	if err != nil {
		return AudioVariant{}, err
	}
	v := &AudioVariant{
		ID:            id,
		ChunkID:       chunkID,
		VariantNumber: count + 1,
		Status:        StatusProcessing,
		UsedVoiceID:   usedVoiceID,
		UsedSettings:  usedSettings,
		CreatedAt:     time.Now().UTC(),
	}
	s.variants[id] = v
	return summary(*v), nil
}

// MarkVariantDone implements [Store.MarkVariantDone].
func (s *MemStore) MarkVariantDone(_ context.Context, id string, audio []byte, activate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variants[id]
	if !ok {
		return ErrVariantNotFound
	}
	v.Audio = make([]byte, len(audio))
	copy(v.Audio, audio)
	v.Status = StatusDone
	v.Progress = 100
	v.ErrorMessage = nil
	if activate {
		for _, sib := range s.variants {
			if sib.ChunkID == v.ChunkID {
				sib.IsActive = false
			}
		}
		v.IsActive = true
	}
	return nil
}

// MarkVariantError implements [Store.MarkVariantError].
func (s *MemStore) MarkVariantError(_ context.Context, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variants[id]
	if !ok {
		return ErrVariantNotFound
	}
	v.Status = StatusError
	v.ErrorMessage = &message
	return nil
}

// ActivateVariant implements [Store.ActivateVariant].
func (s *MemStore) ActivateVariant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variants[id]
	if !ok {
		return ErrVariantNotFound
	}
	if v.Status != StatusDone || len(v.Audio) == 0 {
		return ErrVariantNotReady
	}
	for _, sib := range s.variants {
		if sib.ChunkID == v.ChunkID {
			sib.IsActive = false
		}
	}
	v.IsActive = true
	return nil
}

// DeleteVariant implements [Store.DeleteVariant].
func (s *MemStore) DeleteVariant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variants[id]
	if !ok {
		return ErrVariantNotFound
	}
	wasActive := v.IsActive
	chunkID := v.ChunkID
	delete(s.variants, id)

	rest := s.variantsLocked(chunkID)
	if len(rest) == 0 {
		return nil
	}
	if wasActive {
		// Lowest-numbered survivor takes over.
		s.variants[rest[0].ID].IsActive = true
	}
	for i, sv := range rest {
		s.variants[sv.ID].VariantNumber = i + 1
	}
	return nil
}

// ListActiveVariants implements [Store.ListActiveVariants].
func (s *MemStore) ListActiveVariants(_ context.Context, projectID string) ([]AudioVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, ErrProjectNotFound
	}
	var out []AudioVariant
	for _, c := range s.chunksLocked(projectID) {
		for _, v := range s.variants {
			if v.ChunkID != c.ID || !v.IsActive {
				continue
			}
			full := summary(*v)
			full.Audio = make([]byte, len(v.Audio))
			copy(full.Audio, v.Audio)
			out = append(out, full)
		}
	}
	return out, nil
}

// chunksLocked returns the project's chunks in order. Caller holds the lock.
func (s *MemStore) chunksLocked(projectID string) []Chunk {
	var out []Chunk
	for _, c := range s.chunks {
		if c.ProjectID == projectID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// variantsLocked returns a chunk's variant summaries in number order.
// Caller holds the lock.
func (s *MemStore) variantsLocked(chunkID string) []AudioVariant {
	var out []AudioVariant
	for _, v := range s.variants {
		if v.ChunkID == chunkID {
			out = append(out, summary(*v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantNumber < out[j].VariantNumber })
	return out
}

// purgeVariantsLocked removes every variant of a chunk. Caller holds the lock.
func (s *MemStore) purgeVariantsLocked(chunkID string) {
	for id, v := range s.variants {
		if v.ChunkID == chunkID {
			delete(s.variants, id)
		}
	}
}

// summary strips the audio payload, keeping only its presence flag.
func summary(v AudioVariant) AudioVariant {
	v.HasAudio = len(v.Audio) > 0
	v.Audio = nil
	return v
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copySettings(v *VoiceSettings) *VoiceSettings {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
