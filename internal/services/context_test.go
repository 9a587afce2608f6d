package services_test

import (
	"context"
	"testing"

	"sessionimport/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-123")
	ctx = services.WithSubject(ctx, "R1001P")
	ctx = services.WithKind(ctx, "build_events")
	ctx = services.WithStage(ctx, "check")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-123" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if subject, ok := services.SubjectFromContext(ctx); !ok || subject != "R1001P" {
		t.Fatalf("unexpected subject: %v %v", subject, ok)
	}
	if kind, ok := services.KindFromContext(ctx); !ok || kind != "build_events" {
		t.Fatalf("unexpected kind: %v %v", kind, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "check" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithSubject(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.SubjectFromContext(ctx); ok {
		t.Fatal("expected no subject value")
	}
}
