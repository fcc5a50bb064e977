// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to script synthesis results and to verify the requests the
// generator sends to the synthesis backend.
//
// Example:
//
//	p := &mock.Provider{SynthesizeResult: []byte("mp3 bytes")}
//	audio, _ := p.Synthesize(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/narravox/narravox/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SynthesizeResult is returned by Synthesize when SynthesizeFunc and
	// SynthesizeErr are unset.
	SynthesizeResult []byte

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// SynthesizeFunc, if set, overrides SynthesizeResult/SynthesizeErr and
	// computes the result per call. Useful for failing only some calls of a
	// concurrent batch.
	SynthesizeFunc func(ctx context.Context, req tts.SynthesisRequest) ([]byte, error)

	// ListVoicesResult is returned by ListVoices.
	ListVoicesResult []tts.Voice

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// ListModelsResult is returned by ListModels.
	ListModelsResult []tts.Model

	// ListModelsErr, if non-nil, is returned as the error from ListModels.
	ListModelsErr error

	// --- Call records ---

	// SynthesizeCalls records every request passed to Synthesize in order.
	SynthesizeCalls []tts.SynthesisRequest
}

// Compile-time interface check.
var _ tts.Provider = (*Provider)(nil)

// Synthesize records the call and returns the scripted result.
func (p *Provider) Synthesize(ctx context.Context, req tts.SynthesisRequest) ([]byte, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, req)
	fn := p.SynthesizeFunc
	res, err := p.SynthesizeResult, p.SynthesizeErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(res))
	copy(out, res)
	return out, nil
}

// ListVoices returns the scripted voice catalogue.
func (p *Provider) ListVoices(context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListVoicesErr != nil {
		return nil, p.ListVoicesErr
	}
	return p.ListVoicesResult, nil
}

// ListModels returns the scripted model catalogue.
func (p *Provider) ListModels(context.Context) ([]tts.Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListModelsErr != nil {
		return nil, p.ListModelsErr
	}
	return p.ListModelsResult, nil
}

// Calls returns a snapshot of the recorded Synthesize requests.
func (p *Provider) Calls() []tts.SynthesisRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]tts.SynthesisRequest, len(p.SynthesizeCalls))
	copy(out, p.SynthesizeCalls)
	return out
}
