package sloghooks

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/scalecache"
	"github.com/unkn0wn-root/scalecache/raster"
)

func newTestHooks(opts Options) (*Hooks, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(l, opts), &buf
}

func count(buf *bytes.Buffer, msg string) int {
	return strings.Count(buf.String(), "msg="+msg)
}

func TestHitMissSampling(t *testing.T) {
	h, buf := newTestHooks(Options{HitEvery: 2, MissEvery: 1})
	e := scalecache.NewPyramidEntry(raster.Gray8, 1, 64)
	for i := 0; i < 4; i++ {
		h.Hit(e)
		h.Miss(e)
	}
	if n := count(buf, "scalecache.hit"); n != 2 {
		t.Fatalf("want 2 sampled hits, got %d", n)
	}
	if n := count(buf, "scalecache.miss"); n != 4 {
		t.Fatalf("want every miss, got %d", n)
	}
}

func TestSlowGeneratePromoted(t *testing.T) {
	h, buf := newTestHooks(Options{SlowGenerate: 10 * time.Millisecond})
	e := scalecache.NewPyramidEntry(raster.Gray8, 1, 64)

	h.Generated(e, time.Millisecond)
	h.Generated(e, 20*time.Millisecond)

	if !strings.Contains(buf.String(), "level=DEBUG msg=scalecache.generated") {
		t.Fatalf("fast generation must log at debug:\n%s", buf)
	}
	if !strings.Contains(buf.String(), "level=INFO msg=scalecache.slow_generate") {
		t.Fatalf("slow generation must log at info:\n%s", buf)
	}
}

func TestGenerateFailedCarriesKind(t *testing.T) {
	h, buf := newTestHooks(Options{})
	err := fmt.Errorf("%w: derivative of rgb8", raster.ErrUnsupportedFormat)
	h.GenerateFailed(scalecache.NewDerivativeEntry(raster.RGB8, raster.Horizontal, 1, 8), err)
	if !strings.Contains(buf.String(), "kind=unsupported_format") {
		t.Fatalf("missing kind:\n%s", buf)
	}
}

func TestStructuralEvents(t *testing.T) {
	h, buf := newTestHooks(Options{})
	e := scalecache.NewPyramidEntry(raster.Gray8, 1, 64)
	h.DuplicateInsert(e)
	h.StaleDiscard(e)
	h.Reset(3, 4096)
	for _, msg := range []string{"scalecache.duplicate_insert", "scalecache.stale_discard", "scalecache.reset"} {
		if count(buf, msg) != 1 {
			t.Fatalf("missing %s:\n%s", msg, buf)
		}
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	h := New(nil, Options{})
	e := scalecache.NewPyramidEntry(raster.Gray8, 1, 64)
	h.Hit(e)
	h.Generated(e, time.Second)
	h.Reset(0, 0)
}
