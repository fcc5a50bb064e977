// Package mock provides a test double for the concat.Concatenator interface.
package mock

import (
	"context"
	"sync"
)

// Call records a single Concatenate invocation.
type Call struct {
	// Files is the ordered input list passed to Concatenate.
	Files [][]byte

	// OutputName is the requested result file name.
	OutputName string
}

// Concatenator is a mock implementation of concat.Concatenator. Unless an
// error is scripted it returns the inputs joined back to back, which keeps
// ordering assertions simple.
type Concatenator struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from Concatenate.
	Err error

	// Calls records every invocation in order.
	Calls []Call
}

// Concatenate records the call and returns the naive byte concatenation of
// the inputs, or the scripted error.
func (c *Concatenator) Concatenate(_ context.Context, files [][]byte, outputName string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	recorded := make([][]byte, len(files))
	for i, f := range files {
		recorded[i] = append([]byte(nil), f...)
	}
	c.Calls = append(c.Calls, Call{Files: recorded, OutputName: outputName})

	if c.Err != nil {
		return nil, c.Err
	}
	var out []byte
	for _, f := range files {
		out = append(out, f...)
	}
	return out, nil
}
