package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mytube/internal/domain/clip"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

// fakeGenerator writes a thumbnail unless told to fail.
type fakeGenerator struct {
	fail  bool
	calls []string
}

func (f *fakeGenerator) Thumbnail(_ context.Context, video, output string, _ time.Duration) error {
	f.calls = append(f.calls, filepath.Base(video))
	if f.fail {
		return errors.New("ffmpeg exploded")
	}
	return os.WriteFile(output, []byte("png"), 0o644)
}

// TestLoad_FiltersAndReindexes tests that clips without thumbnails are dropped
// and the survivors are indexed by position.
func TestLoad_FiltersAndReindexes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.mp4", "a.mp4", "b.mp4", "notes.txt"} {
		touch(t, filepath.Join(dir, name))
	}
	touch(t, filepath.Join(dir, ThumbnailDir, "a.png"))
	touch(t, filepath.Join(dir, ThumbnailDir, "c.png"))

	cat, err := Load(context.Background(), dir, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", cat.Size())
	}
	clips := cat.ListClips()
	if clips[0].Name != "a" || clips[1].Name != "c" {
		t.Errorf("names = %s,%s; want a,c", clips[0].Name, clips[1].Name)
	}
	for i, c := range clips {
		if c.Index != i {
			t.Errorf("clip %s Index = %d, want %d", c.Name, c.Index, i)
		}
		if err := c.Validate(); err != nil {
			t.Errorf("clip %s invalid: %v", c.Name, err)
		}
	}
	got, ok := cat.Get(1)
	if !ok || got.ThumbnailPath != filepath.Join(dir, ThumbnailDir, "c.png") {
		t.Errorf("Get(1) = %+v, %v", got, ok)
	}
}

// TestLoad_GeneratesMissingThumbnails tests the generator fallback.
func TestLoad_GeneratesMissingThumbnails(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.mp4"))
	touch(t, filepath.Join(dir, "b.mp4"))
	touch(t, filepath.Join(dir, ThumbnailDir, "a.png"))

	gen := &fakeGenerator{}
	cat, err := Load(context.Background(), dir, LoadOptions{Generator: gen})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Size() != 2 {
		t.Errorf("Size() = %d, want 2", cat.Size())
	}
	if len(gen.calls) != 1 || gen.calls[0] != "b.mp4" {
		t.Errorf("generator calls = %v, want [b.mp4]", gen.calls)
	}
}

// TestLoad_GeneratorFailureDrops tests that a failed generation drops the clip.
func TestLoad_GeneratorFailureDrops(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.mp4"))

	cat, err := Load(context.Background(), dir, LoadOptions{Generator: &fakeGenerator{fail: true}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Size() != 0 {
		t.Errorf("Size() = %d, want 0", cat.Size())
	}
}

// TestLoad_MissingFolder tests that an absent folder gives an empty catalog.
func TestLoad_MissingFolder(t *testing.T) {
	cat, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope"), LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Size() != 0 || len(cat.ListClips()) != 0 {
		t.Errorf("expected empty catalog")
	}
}

// TestCatalog_Get_OutOfRange tests bounds checks.
func TestCatalog_Get_OutOfRange(t *testing.T) {
	cat := New([]clip.Clip{{Name: "a"}, {Name: "b"}})
	for _, idx := range []int{-1, 2, 99} {
		if _, ok := cat.Get(idx); ok {
			t.Errorf("Get(%d) ok, want miss", idx)
		}
	}
	if c, _ := cat.Get(1); c.Index != 1 {
		t.Errorf("New did not reindex: %+v", c)
	}
}

// TestCatalog_ListClips_IsCopy tests that callers cannot mutate the catalog.
func TestCatalog_ListClips_IsCopy(t *testing.T) {
	cat := New([]clip.Clip{{Name: "a"}})
	list := cat.ListClips()
	list[0].Name = "changed"
	if c, _ := cat.Get(0); c.Name != "a" {
		t.Error("ListClips leaked internal slice")
	}
}

// TestTerminalMedia tests presence checks for the info videos.
func TestTerminalMedia(t *testing.T) {
	dir := t.TempDir()
	oneMore := filepath.Join(dir, "one_more.mp4")
	touch(t, oneMore)
	tm := TerminalMedia{OneMorePath: oneMore, FinishedPath: filepath.Join(dir, "finished.mp4")}

	if p, ok := tm.OnOneRemaining(); !ok || p != oneMore {
		t.Errorf("OnOneRemaining() = %q, %v", p, ok)
	}
	if _, ok := tm.OnLimitReached(); ok {
		t.Error("OnLimitReached() should miss for absent file")
	}
	if _, ok := (TerminalMedia{}).OnOneRemaining(); ok {
		t.Error("empty path should miss")
	}
}
