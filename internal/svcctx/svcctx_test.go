package svcctx

import (
	"context"
	"log/slog"
	"testing"

	"github.com/jackzampolin/folio/internal/provider"
)

func TestRoundTrip(t *testing.T) {
	registry := provider.DefaultRegistry()
	svcs := &Services{
		Logger:   slog.Default(),
		Registry: registry,
	}

	ctx := WithServices(context.Background(), svcs)

	if got := ServicesFrom(ctx); got != svcs {
		t.Error("expected attached services back")
	}
	if got := LoggerFrom(ctx); got != svcs.Logger {
		t.Error("expected attached logger back")
	}
	if got := RegistryFrom(ctx); got != registry {
		t.Error("expected attached registry back")
	}
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()

	if ServicesFrom(ctx) != nil {
		t.Error("expected nil services from empty context")
	}
	if LoggerFrom(ctx) != nil {
		t.Error("expected nil logger from empty context")
	}
	if PositionsFrom(ctx) != nil {
		t.Error("expected nil store from empty context")
	}
	if HomeFrom(ctx) != nil {
		t.Error("expected nil home from empty context")
	}
	if ConfigManagerFrom(ctx) != nil {
		t.Error("expected nil config manager from empty context")
	}
	if LibraryFrom(ctx) != nil {
		t.Error("expected nil library from empty context")
	}
}
