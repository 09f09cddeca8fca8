package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestChildInheritsTraceID(t *testing.T) {
	ctx, root := Start(context.Background(), "rebuild", "trace-1")
	_, child := Start(ctx, "load", "ignored")
	child.End(nil)
	root.End(nil)

	if child.TraceID != "trace-1" {
		t.Errorf("child trace id = %q", child.TraceID)
	}
	if kids := root.Children(); len(kids) != 1 || kids[0] != child {
		t.Errorf("children = %v", kids)
	}
}

func TestRootGetsGeneratedID(t *testing.T) {
	_, span := Start(context.Background(), "search", "")
	if span.TraceID == "" {
		t.Error("expected generated trace id")
	}
}

func TestEndReturnsErrAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := Start(context.Background(), "rebuild", "t")
	_, step := Start(ctx, "create", "")
	boom := errors.New("boom")
	if err := step.End(boom); !errors.Is(err, boom) {
		t.Fatalf("End returned %v", err)
	}
	root.SetAttr("index", "recetas")
	root.End(nil)
	root.Log(context.Background(), logger)

	out := buf.String()
	if strings.Count(out, "msg=span") != 2 {
		t.Fatalf("log output:\n%s", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "error=boom") {
		t.Errorf("failed span not logged as warning:\n%s", out)
	}
	if !strings.Contains(out, "index=recetas") {
		t.Errorf("attrs missing:\n%s", out)
	}
}
