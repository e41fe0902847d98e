package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestStartSpan_WithoutInitIsNoop(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test.span", attribute.Int("n", 1))
	defer span.End()

	if ctx == nil {
		t.Fatal("Expected a context")
	}
	if span.SpanContext().IsSampled() {
		t.Error("Expected an unsampled span from the default provider")
	}
}

func TestInitTracing_None(t *testing.T) {
	shutdown, err := InitTracing("fulfillment-twin-test", "none")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
