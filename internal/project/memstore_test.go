package project

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func newTestProject(t *testing.T, s *MemStore) Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), "My Audiobook")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

func newTestChunk(t *testing.T, s *MemStore, projectID, text string, order int) Chunk {
	t.Helper()
	chunks, err := s.ApplyChunkPlan(context.Background(), projectID, ChunkPlan{
		Creates: []ChunkCreate{{Text: text, Order: order}},
	})
	if err != nil {
		t.Fatalf("ApplyChunkPlan: %v", err)
	}
	for _, c := range chunks {
		if c.Text == text && c.Order == order {
			return c
		}
	}
	t.Fatalf("created chunk not returned")
	return Chunk{}
}

func TestCreateProject_RejectsInvalidName(t *testing.T) {
	s := NewMemStore()
	long := make([]byte, MaxProjectNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := s.CreateProject(context.Background(), string(long))
	if !errors.Is(err, ErrInvalidName) {
		t.Errorf("err = %v, want ErrInvalidName", err)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	s := NewMemStore()
	_, err := s.GetProject(context.Background(), "nope")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("err = %v, want ErrProjectNotFound", err)
	}
}

func TestDeleteProject_CascadesToChunksAndVariants(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)
	c := newTestChunk(t, s, p.ID, "Hello", 0)

	v, err := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	if err != nil {
		t.Fatalf("CreateVariant: %v", err)
	}

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := s.GetChunk(ctx, c.ID); !errors.Is(err, ErrChunkNotFound) {
		t.Errorf("chunk err = %v, want ErrChunkNotFound", err)
	}
	if _, err := s.GetVariant(ctx, v.ID); !errors.Is(err, ErrVariantNotFound) {
		t.Errorf("variant err = %v, want ErrVariantNotFound", err)
	}
}

func TestApplyChunkPlan_Atomic(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)

	chunks, err := s.ApplyChunkPlan(ctx, p.ID, ChunkPlan{
		Creates: []ChunkCreate{{Text: "one", Order: 0}, {Text: "two", Order: 1}},
	})
	if err != nil {
		t.Fatalf("ApplyChunkPlan: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if chunks[0].Text != "one" || chunks[1].Text != "two" {
		t.Errorf("chunks out of order: %q, %q", chunks[0].Text, chunks[1].Text)
	}
}

func TestApplyChunkPlan_PurgeVariantsOnUpdate(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)
	c := newTestChunk(t, s, p.ID, "before", 0)

	v, err := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	if err != nil {
		t.Fatalf("CreateVariant: %v", err)
	}

	_, err = s.ApplyChunkPlan(ctx, p.ID, ChunkPlan{
		Updates: []ChunkUpdate{{ID: c.ID, Text: "after", Order: 0, PurgeVariants: true}},
	})
	if err != nil {
		t.Fatalf("ApplyChunkPlan: %v", err)
	}

	if _, err := s.GetVariant(ctx, v.ID); !errors.Is(err, ErrVariantNotFound) {
		t.Errorf("variant err = %v, want ErrVariantNotFound after purge", err)
	}
	got, err := s.GetChunk(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if got.Text != "after" {
		t.Errorf("text = %q, want %q", got.Text, "after")
	}
}

func TestApplyChunkPlan_FailedPlanLeavesStoreUntouched(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)
	c := newTestChunk(t, s, p.ID, "original", 0)

	v, err := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	if err != nil {
		t.Fatalf("CreateVariant: %v", err)
	}

	// A valid purging update followed by a delete of an unknown chunk: the
	// plan must fail as a whole, without the update having taken effect.
	_, err = s.ApplyChunkPlan(ctx, p.ID, ChunkPlan{
		Updates:   []ChunkUpdate{{ID: c.ID, Text: "changed", Order: 0, PurgeVariants: true}},
		DeleteIDs: []string{"no-such-chunk"},
	})
	if !errors.Is(err, ErrChunkNotFound) {
		t.Fatalf("err = %v, want ErrChunkNotFound", err)
	}

	got, err := s.GetChunk(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if got.Text != "original" {
		t.Errorf("text = %q, want %q after failed plan", got.Text, "original")
	}
	if _, err := s.GetVariant(ctx, v.ID); err != nil {
		t.Errorf("variant gone after failed plan: %v", err)
	}
}

func TestCreateVariant_NumbersSequentially(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)
	c := newTestChunk(t, s, p.ID, "Hello", 0)

	for want := 1; want <= 3; want++ {
		v, err := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
		if err != nil {
			t.Fatalf("CreateVariant #%d: %v", want, err)
		}
		if v.VariantNumber != want {
			t.Errorf("variant number = %d, want %d", v.VariantNumber, want)
		}
		if v.Status != StatusProcessing {
			t.Errorf("status = %q, want %q", v.Status, StatusProcessing)
		}
	}
}

func TestCreateVariant_EnforcesLimit(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)
	c := newTestChunk(t, s, p.ID, "Hello", 0)

	for i := 0; i < MaxVariantsPerChunk; i++ {
		if _, err := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk); err != nil {
			t.Fatalf("CreateVariant #%d: %v", i+1, err)
		}
	}
	_, err := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	if !errors.Is(err, ErrVariantLimit) {
		t.Errorf("err = %v, want ErrVariantLimit", err)
	}
}

func TestCreateVariant_ConcurrentAllocationsAreUnique(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)
	c := newTestChunk(t, s, p.ID, "Hello", 0)

	const n = 5
	var wg sync.WaitGroup
	numbers := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), n)
			if err != nil {
				t.Errorf("CreateVariant: %v", err)
				return
			}
			numbers <- v.VariantNumber
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[int]bool{}
	for num := range numbers {
		if seen[num] {
			t.Errorf("duplicate variant number %d", num)
		}
		seen[num] = true
	}
	if len(seen) != n {
		t.Errorf("allocated %d distinct numbers, want %d", len(seen), n)
	}
}

func TestMarkVariantDone_ActivateMakesExclusive(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)
	c := newTestChunk(t, s, p.ID, "Hello", 0)

	v1, _ := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	v2, _ := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)

	if err := s.MarkVariantDone(ctx, v1.ID, []byte("mp3-a"), true); err != nil {
		t.Fatalf("MarkVariantDone v1: %v", err)
	}
	if err := s.MarkVariantDone(ctx, v2.ID, []byte("mp3-b"), false); err != nil {
		t.Fatalf("MarkVariantDone v2: %v", err)
	}

	list, err := s.ListVariants(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListVariants: %v", err)
	}
	activeCount := 0
	for _, v := range list {
		if v.IsActive {
			activeCount++
		}
		if v.Status == StatusDone && !v.HasAudio {
			t.Errorf("variant %d done but HasAudio false", v.VariantNumber)
		}
		if v.Audio != nil {
			t.Error("summary leaked audio payload")
		}
	}
	if activeCount != 1 {
		t.Errorf("active count = %d, want 1", activeCount)
	}
}

func TestActivateVariant_RequiresDoneWithAudio(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)
	c := newTestChunk(t, s, p.ID, "Hello", 0)

	v, _ := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	if err := s.ActivateVariant(ctx, v.ID); !errors.Is(err, ErrVariantNotReady) {
		t.Errorf("activating processing variant: err = %v, want ErrVariantNotReady", err)
	}

	if err := s.MarkVariantError(ctx, v.ID, "boom"); err != nil {
		t.Fatalf("MarkVariantError: %v", err)
	}
	if err := s.ActivateVariant(ctx, v.ID); !errors.Is(err, ErrVariantNotReady) {
		t.Errorf("activating error variant: err = %v, want ErrVariantNotReady", err)
	}

	if err := s.MarkVariantDone(ctx, v.ID, []byte("mp3"), false); err != nil {
		t.Fatalf("MarkVariantDone: %v", err)
	}
	if err := s.ActivateVariant(ctx, v.ID); err != nil {
		t.Errorf("activating done variant: %v", err)
	}
}

func TestActivateVariant_SwitchesExclusively(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)
	c := newTestChunk(t, s, p.ID, "Hello", 0)

	v1, _ := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	v2, _ := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	_ = s.MarkVariantDone(ctx, v1.ID, []byte("a"), true)
	_ = s.MarkVariantDone(ctx, v2.ID, []byte("b"), false)

	if err := s.ActivateVariant(ctx, v2.ID); err != nil {
		t.Fatalf("ActivateVariant: %v", err)
	}

	list, _ := s.ListVariants(ctx, c.ID)
	for _, v := range list {
		wantActive := v.ID == v2.ID
		if v.IsActive != wantActive {
			t.Errorf("variant %d IsActive = %v, want %v", v.VariantNumber, v.IsActive, wantActive)
		}
	}
}

func TestDeleteVariant_PromotesAndRenumbers(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)
	c := newTestChunk(t, s, p.ID, "Hello", 0)

	v1, _ := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	v2, _ := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	v3, _ := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	_ = s.MarkVariantDone(ctx, v1.ID, []byte("a"), true)
	_ = s.MarkVariantDone(ctx, v2.ID, []byte("b"), false)
	_ = s.MarkVariantDone(ctx, v3.ID, []byte("c"), false)

	// Deleting the active number 1 promotes the old number 2 and renumbers.
	if err := s.DeleteVariant(ctx, v1.ID); err != nil {
		t.Fatalf("DeleteVariant: %v", err)
	}

	list, _ := s.ListVariants(ctx, c.ID)
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != v2.ID || list[0].VariantNumber != 1 || !list[0].IsActive {
		t.Errorf("survivor 1 = {id %s, n %d, active %v}, want old v2 as active number 1",
			list[0].ID, list[0].VariantNumber, list[0].IsActive)
	}
	if list[1].ID != v3.ID || list[1].VariantNumber != 2 || list[1].IsActive {
		t.Errorf("survivor 2 = {id %s, n %d, active %v}, want old v3 as inactive number 2",
			list[1].ID, list[1].VariantNumber, list[1].IsActive)
	}
}

func TestDeleteVariant_InactiveKeepsActive(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)
	c := newTestChunk(t, s, p.ID, "Hello", 0)

	v1, _ := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	v2, _ := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	_ = s.MarkVariantDone(ctx, v1.ID, []byte("a"), true)
	_ = s.MarkVariantDone(ctx, v2.ID, []byte("b"), false)

	if err := s.DeleteVariant(ctx, v2.ID); err != nil {
		t.Fatalf("DeleteVariant: %v", err)
	}
	list, _ := s.ListVariants(ctx, c.ID)
	if len(list) != 1 || !list[0].IsActive || list[0].ID != v1.ID {
		t.Errorf("unexpected survivors: %+v", list)
	}
}

func TestGetVariantAudio(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)
	c := newTestChunk(t, s, p.ID, "Hello", 0)
	v, _ := s.CreateVariant(ctx, c.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)

	if _, err := s.GetVariantAudio(ctx, v.ID); !errors.Is(err, ErrVariantNotReady) {
		t.Errorf("err = %v, want ErrVariantNotReady before audio exists", err)
	}

	_ = s.MarkVariantDone(ctx, v.ID, []byte("mp3-bytes"), true)
	audio, err := s.GetVariantAudio(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetVariantAudio: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("audio = %q", audio)
	}
}

func TestListActiveVariants_LoadsAudioInChunkOrder(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)

	c1 := newTestChunk(t, s, p.ID, "first", 0)
	c2 := newTestChunk(t, s, p.ID, "second", 1)
	v1, _ := s.CreateVariant(ctx, c1.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	v2, _ := s.CreateVariant(ctx, c2.ID, "voice-1", DefaultVoiceSettings(), MaxVariantsPerChunk)
	_ = s.MarkVariantDone(ctx, v1.ID, []byte("audio-1"), true)
	_ = s.MarkVariantDone(ctx, v2.ID, []byte("audio-2"), true)

	active, err := s.ListActiveVariants(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListActiveVariants: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("len = %d, want 2", len(active))
	}
	if string(active[0].Audio) != "audio-1" || string(active[1].Audio) != "audio-2" {
		t.Errorf("audio out of order: %q, %q", active[0].Audio, active[1].Audio)
	}
}

func TestSetChunkVoice_ClearsOnDisable(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newTestProject(t, s)
	c := newTestChunk(t, s, p.ID, "Hello", 0)

	voice := "voice-custom"
	settings := DefaultVoiceSettings()
	if err := s.SetChunkVoice(ctx, c.ID, true, &voice, &settings); err != nil {
		t.Fatalf("SetChunkVoice: %v", err)
	}
	got, _ := s.GetChunk(ctx, c.ID)
	if !got.UseCustomSettings || got.CustomVoiceID == nil || *got.CustomVoiceID != voice {
		t.Errorf("custom voice not stored: %+v", got)
	}

	if err := s.SetChunkVoice(ctx, c.ID, false, nil, nil); err != nil {
		t.Fatalf("SetChunkVoice reset: %v", err)
	}
	got, _ = s.GetChunk(ctx, c.ID)
	if got.UseCustomSettings || got.CustomVoiceID != nil || got.CustomVoiceSettings != nil {
		t.Errorf("custom voice not cleared: %+v", got)
	}
}
