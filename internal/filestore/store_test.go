package filestore_test

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"audiovault/internal/filestore"
	"audiovault/internal/logging"
	"audiovault/internal/testsupport"
)

func newStore(t *testing.T) *filestore.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := filestore.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	return store
}

func TestGenerateNameShape(t *testing.T) {
	name := filestore.GenerateName("user42", "My Song.MP3")
	if !strings.HasPrefix(name, "user42_") || !strings.HasSuffix(name, ".mp3") {
		t.Fatalf("unexpected name %q", name)
	}
	if !filestore.OwnedBy(name, "user42") {
		t.Fatalf("expected %q to be owned by user42", name)
	}
	if filestore.OwnedBy(name, "user4") || filestore.OwnedBy(name, "user42_x") {
		t.Fatalf("ownership must not match on partial prefixes: %q", name)
	}
	if other := filestore.GenerateName("user42", "My Song.MP3"); other == name {
		t.Fatal("expected unique names")
	}
	if got := filestore.GenerateName("u", "weird.$$$"); strings.Contains(got, "$") {
		t.Fatalf("unsafe extension kept: %q", got)
	}
}

func TestDerivedNames(t *testing.T) {
	audio := "u1_3f0c1a8e-0000-4000-8000-000000000001.flac"
	cover := filestore.CoverName(audio)
	if cover != "u1_3f0c1a8e-0000-4000-8000-000000000001_cover.jpg" {
		t.Fatalf("unexpected cover name %q", cover)
	}
	thumb := filestore.ThumbnailName(cover, "medium")
	if thumb != "u1_3f0c1a8e-0000-4000-8000-000000000001_cover_thumb_medium.webp" {
		t.Fatalf("unexpected thumbnail name %q", thumb)
	}
}

func TestDerivedNamesKeepDottedOwners(t *testing.T) {
	cases := []struct {
		name      string
		audio     string
		wantCover string
	}{
		{"no extension", "j.doe_3f0c1a8e-0000-4000-8000-000000000001", "j.doe_3f0c1a8e-0000-4000-8000-000000000001_cover.jpg"},
		{"with extension", "j.doe_3f0c1a8e-0000-4000-8000-000000000001.mp3", "j.doe_3f0c1a8e-0000-4000-8000-000000000001_cover.jpg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := filestore.CoverName(tc.audio); got != tc.wantCover {
				t.Fatalf("CoverName(%q) = %q want %q", tc.audio, got, tc.wantCover)
			}
		})
	}

	a := filestore.GenerateName("j.doe", "track")
	b := filestore.GenerateName("j.smith", "track")
	if filestore.CoverName(a) == filestore.CoverName(b) {
		t.Fatalf("cover names collide for %q and %q", a, b)
	}
	if got, want := filestore.ThumbnailName(a, "small"), a+"_thumb_small.webp"; got != want {
		t.Fatalf("ThumbnailName = %q want %q", got, want)
	}
}

func TestSaveRoundTripIsByteIdentical(t *testing.T) {
	store := newStore(t)
	payload := bytes.Repeat([]byte{0x00, 0xff, 0x10, 0x7f}, 4096)

	asset, err := store.Save(payload, filestore.KindAudio, "owner", "track.mp3")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if asset.Size != int64(len(payload)) {
		t.Fatalf("unexpected size %d", asset.Size)
	}
	path, ok := store.Path(asset.Name, filestore.KindAudio)
	if !ok || path != asset.Path {
		t.Fatalf("expected path lookup to succeed, got %q ok=%v", path, ok)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("stored bytes differ from upload")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".partial-") {
			t.Fatalf("temporary file left behind: %s", entry.Name())
		}
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	store := newStore(t)
	for _, name := range []string{"", "..", "../secret", "a/b", `a\b`, ".hidden"} {
		if _, ok := store.Path(name, filestore.KindAudio); ok {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
	if _, err := store.SaveAs([]byte("x"), filestore.KindCover, "../escape.jpg"); err == nil {
		t.Fatal("expected SaveAs to reject traversal")
	}
	if _, ok := store.Path("missing.mp3", filestore.KindAudio); ok {
		t.Fatal("expected missing file to resolve to not found")
	}
}

func seedAudioWithDerived(t *testing.T, store *filestore.Store) (string, string, []string) {
	t.Helper()
	audio, err := store.Save([]byte("audio"), filestore.KindAudio, "owner", "a.mp3")
	if err != nil {
		t.Fatalf("save audio: %v", err)
	}
	cover := filestore.CoverName(audio.Name)
	if _, err := store.SaveAs([]byte("cover"), filestore.KindCover, cover); err != nil {
		t.Fatalf("save cover: %v", err)
	}
	var thumbs []string
	for _, size := range store.ThumbnailSizes() {
		name := filestore.ThumbnailName(cover, size)
		if _, err := store.SaveAs([]byte("thumb"), filestore.KindCover, name); err != nil {
			t.Fatalf("save thumb: %v", err)
		}
		thumbs = append(thumbs, name)
	}
	return audio.Name, cover, thumbs
}

func TestDeleteCascadeRemovesDerived(t *testing.T) {
	store := newStore(t)
	audio, cover, thumbs := seedAudioWithDerived(t, store)

	result := store.Delete(audio, filestore.KindAudio, true)
	if !result.Deleted {
		t.Fatal("expected audio deleted")
	}
	if len(result.Removed) != 2+len(thumbs) {
		t.Fatalf("expected audio, cover and %d thumbnails removed, got %v", len(thumbs), result.Removed)
	}
	if _, ok := store.Path(audio, filestore.KindAudio); ok {
		t.Fatal("audio still present")
	}
	if _, ok := store.Path(cover, filestore.KindCover); ok {
		t.Fatal("cover still present")
	}
	if got := store.Thumbnails(cover); len(got) != 0 {
		t.Fatalf("thumbnails still present: %v", got)
	}
}

func TestDeleteWithoutCascadeKeepsDerived(t *testing.T) {
	store := newStore(t)
	audio, cover, thumbs := seedAudioWithDerived(t, store)

	result := store.Delete(audio, filestore.KindAudio, false)
	if !result.Deleted || !slices.Equal(result.Removed, []string{audio}) {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, ok := store.Path(cover, filestore.KindCover); !ok {
		t.Fatal("cover should survive non-cascading delete")
	}
	if got := store.Thumbnails(cover); len(got) != len(thumbs) {
		t.Fatalf("expected %d thumbnails, got %v", len(thumbs), got)
	}
}

func TestDeleteCoverCascadesToThumbnails(t *testing.T) {
	store := newStore(t)
	_, cover, thumbs := seedAudioWithDerived(t, store)

	result := store.Delete(cover, filestore.KindCover, true)
	if !result.Deleted || len(result.Removed) != 1+len(thumbs) {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	store := newStore(t)
	result := store.Delete("owner_nothing.mp3", filestore.KindAudio, true)
	if result.Deleted || len(result.Removed) != 0 || len(result.Failed) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestDeleteContinuesPastDerivedFailure(t *testing.T) {
	store := newStore(t)
	audio, cover, thumbs := seedAudioWithDerived(t, store)

	// A non-empty directory under the cover's name cannot be removed with os.Remove.
	coverPath, _ := store.Path(cover, filestore.KindCover)
	if err := os.Remove(coverPath); err != nil {
		t.Fatalf("remove cover: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(coverPath, "child"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	result := store.Delete(audio, filestore.KindAudio, true)
	if !result.Deleted {
		t.Fatal("expected primary deletion to succeed")
	}
	if len(result.Failed) != 1 || result.Failed[0].Name != cover {
		t.Fatalf("expected cover failure recorded, got %+v", result.Failed)
	}
	if len(result.Removed) != 1+len(thumbs) {
		t.Fatalf("expected thumbnails still removed, got %v", result.Removed)
	}
}

func TestOwnedAudio(t *testing.T) {
	store := newStore(t)
	mine, _ := store.Save([]byte("a"), filestore.KindAudio, "alice", "a.mp3")
	_, _ = store.Save([]byte("b"), filestore.KindAudio, "bob", "b.mp3")

	names, err := store.OwnedAudio("alice")
	if err != nil {
		t.Fatalf("OwnedAudio: %v", err)
	}
	if !slices.Equal(names, []string{mine.Name}) {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestCoverOwnedBy(t *testing.T) {
	audio := filestore.GenerateName("ann", "a.mp3")
	uploaded := filestore.GenerateName("ann", "c.png")
	for _, name := range []string{filestore.CoverName(audio), uploaded} {
		if !filestore.CoverOwnedBy(name, "ann") {
			t.Fatalf("expected %q owned by ann", name)
		}
		if filestore.CoverOwnedBy(name, "an") || filestore.CoverOwnedBy(name, "bob") {
			t.Fatalf("%q must not match other owners", name)
		}
	}
	if filestore.CoverOwnedBy(filestore.ThumbnailName(filestore.CoverName(audio), "small"), "ann") {
		t.Fatal("thumbnails are not covers")
	}
}
