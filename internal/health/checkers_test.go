package health

import (
	"context"
	"errors"
	"testing"

	ttsmock "github.com/narravox/narravox/pkg/provider/tts/mock"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(_ context.Context) error { return f.err }

func TestDatabaseChecker(t *testing.T) {
	c := Database(fakePinger{})
	if c.Name != "database" {
		t.Errorf("name = %q, want %q", c.Name, "database")
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("healthy ping returned error: %v", err)
	}

	c = Database(fakePinger{err: errors.New("connection refused")})
	if err := c.Check(context.Background()); err == nil {
		t.Error("failing ping returned nil")
	}
}

func TestSynthesisChecker(t *testing.T) {
	c := Synthesis(&ttsmock.Provider{})
	if c.Name != "synthesis" {
		t.Errorf("name = %q, want %q", c.Name, "synthesis")
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("healthy provider returned error: %v", err)
	}

	c = Synthesis(&ttsmock.Provider{ListModelsErr: errors.New("unauthorized")})
	if err := c.Check(context.Background()); err == nil {
		t.Error("failing provider returned nil")
	}
}
