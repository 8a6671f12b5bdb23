package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os"
	"testing"

	"golang.org/x/image/webp"

	"audiovault/internal/catalog"
	"audiovault/internal/config"
	"audiovault/internal/filestore"
	"audiovault/internal/ingest"
	"audiovault/internal/logging"
	"audiovault/internal/quota"
	"audiovault/internal/services"
	"audiovault/internal/testsupport"
)

type harness struct {
	cfg      *config.Config
	catalog  *catalog.Store
	files    *filestore.Store
	pipeline *ingest.Pipeline
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenCatalog(t, cfg)
	files, err := filestore.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	for _, owner := range []string{"alice", "bob"} {
		if err := store.EnsureOwner(context.Background(), owner, owner+"@example.com"); err != nil {
			t.Fatalf("EnsureOwner: %v", err)
		}
	}
	return &harness{
		cfg:      cfg,
		catalog:  store,
		files:    files,
		pipeline: ingest.New(cfg, files, store, logging.NewNop()),
	}
}

func taggedMP3(t *testing.T) []byte {
	t.Helper()
	cover := testsupport.JPEG(t, 800, 400, color.RGBA{R: 200, G: 30, B: 30, A: 255})
	tag := testsupport.ID3v2(3,
		testsupport.ID3Text("TIT2", "Night Drive"),
		testsupport.ID3Text("TPE1", "Kavinsky"),
		testsupport.ID3Text("TBPM", "120"),
		testsupport.ID3Picture("image/jpeg", 3, cover),
	)
	return append(tag, testsupport.MPEGFrames(40)...)
}

func TestSaveAudioWithEmbeddedCoverProducesThumbnails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	payload := taggedMP3(t)

	result, err := h.pipeline.SaveAudio(ctx, ingest.Upload{
		Owner:       "alice",
		Filename:    "night drive.mp3",
		ContentType: "audio/mpeg",
		Data:        payload,
	})
	if err != nil {
		t.Fatalf("SaveAudio: %v", err)
	}
	if !filestore.OwnedBy(result.Name, "alice") || result.Size != int64(len(payload)) {
		t.Fatalf("unexpected result %+v", result)
	}
	stored, err := os.ReadFile(result.Path)
	if err != nil || !bytes.Equal(stored, payload) {
		t.Fatalf("stored audio differs from upload (err=%v)", err)
	}

	if result.Cover == nil {
		t.Fatal("expected embedded cover")
	}
	if result.Cover.Name != filestore.CoverName(result.Name) || result.Cover.ContentType != "image/jpeg" {
		t.Fatalf("unexpected cover %+v", result.Cover)
	}
	want := map[string]int{"small": 150, "medium": 300, "large": 600}
	if len(result.Cover.Thumbnails) != len(want) {
		t.Fatalf("expected %d thumbnails, got %v", len(want), result.Cover.Thumbnails)
	}
	for size, side := range want {
		info, ok := result.Cover.Thumbnails[size]
		if !ok {
			t.Fatalf("missing %s thumbnail", size)
		}
		data, err := os.ReadFile(info.Path)
		if err != nil {
			t.Fatalf("read thumbnail: %v", err)
		}
		cfg, err := webp.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("decode %s thumbnail: %v", size, err)
		}
		if cfg.Width != side || cfg.Height != side {
			t.Fatalf("%s thumbnail is %dx%d, want %dx%d", size, cfg.Width, cfg.Height, side, side)
		}
	}

	if result.Metadata["title"] != "Night Drive" || result.Metadata["artist"] != "Kavinsky" {
		t.Fatalf("unexpected metadata %v", result.Metadata)
	}
	if result.Metadata["bpm"] != 120 {
		t.Fatalf("expected coerced bpm, got %#v", result.Metadata["bpm"])
	}
	if result.Quota == nil || result.Quota.Used != int64(len(payload)) {
		t.Fatalf("unexpected projection %+v", result.Quota)
	}

	used, _ := h.catalog.UsedBytes(ctx, "alice")
	if used != int64(len(payload)) {
		t.Fatalf("expected usage %d, got %d", len(payload), used)
	}
	file, err := h.pipeline.OpenAudio(ctx, "alice", result.Name)
	if err != nil {
		t.Fatalf("OpenAudio: %v", err)
	}
	if file.DownloadName != "Kavinsky - Night Drive.mp3" || file.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected audio file %+v", file)
	}
}

func TestSaveAudioToleratesUnreadableContainer(t *testing.T) {
	h := newHarness(t)
	payload := testsupport.Pattern(4096)

	result, err := h.pipeline.SaveAudio(context.Background(), ingest.Upload{
		Owner:       "alice",
		Filename:    "broken.FLAC",
		ContentType: "application/octet-stream",
		Data:        payload,
	})
	if err != nil {
		t.Fatalf("SaveAudio: %v", err)
	}
	if result.Cover != nil || len(result.Metadata) != 0 {
		t.Fatalf("expected no cover and empty metadata, got %+v", result)
	}
	if _, ok := h.files.Path(result.Name, filestore.KindAudio); !ok {
		t.Fatal("audio must still be stored")
	}
}

func TestSaveAudioRejections(t *testing.T) {
	h := newHarness(t, testsupport.WithQuota(10*1024), testsupport.WithMaxUpload(64*1024))
	ctx := context.Background()
	if err := h.catalog.EnsureOwner(ctx, "carol", ""); err != nil {
		t.Fatalf("EnsureOwner: %v", err)
	}

	cases := []struct {
		name string
		up   ingest.Upload
		want error
	}{
		{"unsupported type", ingest.Upload{Owner: "carol", Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hi")}, services.ErrValidation},
		{"empty payload", ingest.Upload{Owner: "carol", Filename: "a.mp3", ContentType: "audio/mpeg"}, services.ErrValidation},
		{"bad owner", ingest.Upload{Owner: "../etc", Filename: "a.mp3", ContentType: "audio/mpeg", Data: []byte("x")}, services.ErrValidation},
		{"over quota", ingest.Upload{Owner: "carol", Filename: "a.mp3", ContentType: "audio/mpeg", Data: testsupport.Pattern(10*1024 + 1)}, services.ErrQuotaExceeded},
		{"over upload limit", ingest.Upload{Owner: "carol", Filename: "a.mp3", ContentType: "audio/mpeg", Data: testsupport.Pattern(64*1024 + 1)}, services.ErrQuotaExceeded},
		{"unknown owner", ingest.Upload{Owner: "nobody", Filename: "a.mp3", ContentType: "audio/mpeg", Data: []byte("x")}, services.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.pipeline.SaveAudio(ctx, tc.up)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	names, err := h.files.OwnedAudio("carol")
	if err != nil {
		t.Fatalf("OwnedAudio: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("rejected uploads must not write files, found %v", names)
	}

	var verr *ingest.ValidationError
	_, err = h.pipeline.SaveAudio(ctx, cases[0].up)
	if !errors.As(err, &verr) || verr.Extension != ".txt" || verr.ContentType != "text/plain" {
		t.Fatalf("expected ValidationError details, got %v", err)
	}
}

func TestCheckUploadBoundary(t *testing.T) {
	h := newHarness(t, testsupport.WithQuota(1000))
	ctx := context.Background()
	testsupport.RecordAsset(t, h.catalog, catalog.Asset{Name: "alice_seed.mp3", Owner: "alice", Size: 400})

	decision, err := h.pipeline.CheckUpload(ctx, "alice", 600)
	if err != nil || !decision.Allowed {
		t.Fatalf("expected allowed, got %+v err=%v", decision, err)
	}
	decision, err = h.pipeline.CheckUpload(ctx, "alice", 601)
	if err != nil || decision.Allowed || decision.Reason != quota.ReasonInsufficientSpace {
		t.Fatalf("expected denial, got %+v err=%v", decision, err)
	}
	usage, err := h.pipeline.Usage(ctx, "alice")
	if err != nil || usage.Used != 400 || usage.Available != 600 {
		t.Fatalf("unexpected usage %+v err=%v", usage, err)
	}
}

func TestCoverUploadDoesNotConsumeQuota(t *testing.T) {
	h := newHarness(t, testsupport.WithQuota(20000))
	ctx := context.Background()
	img := testsupport.PNG(t, 64, 64, color.RGBA{G: 255, A: 255})

	if _, err := h.pipeline.SaveCover(ctx, ingest.Upload{Owner: "alice", Filename: "art.png", ContentType: "image/png", Data: img}); err != nil {
		t.Fatalf("SaveCover: %v", err)
	}
	decision, err := h.pipeline.CheckUpload(ctx, "alice", 20000)
	if err != nil || !decision.Allowed {
		t.Fatalf("expected the full quota to remain available, got %+v err=%v", decision, err)
	}
	if used, _ := h.catalog.UsedBytes(ctx, "alice"); used != 0 {
		t.Fatalf("expected covers not to count as used, got %d", used)
	}
}

func TestDottedOwnerWithoutExtensionKeepsDerivedNamesApart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.catalog.EnsureOwner(ctx, "j.doe", "j.doe@example.com"); err != nil {
		t.Fatalf("EnsureOwner: %v", err)
	}
	up := ingest.Upload{Owner: "j.doe", Filename: "track", ContentType: "audio/mpeg", Data: taggedMP3(t)}

	first, err := h.pipeline.SaveAudio(ctx, up)
	if err != nil {
		t.Fatalf("SaveAudio first: %v", err)
	}
	second, err := h.pipeline.SaveAudio(ctx, up)
	if err != nil {
		t.Fatalf("SaveAudio second: %v", err)
	}
	if first.Cover == nil || second.Cover == nil {
		t.Fatal("expected embedded covers on both uploads")
	}
	if first.Cover.Name == second.Cover.Name {
		t.Fatalf("derived cover names collide: %q", first.Cover.Name)
	}
	if first.Cover.Name != first.Name+"_cover.jpg" {
		t.Fatalf("unexpected cover name %q for %q", first.Cover.Name, first.Name)
	}

	if _, err := h.pipeline.DeleteAudio(ctx, "j.doe", first.Name, true); err != nil {
		t.Fatalf("DeleteAudio: %v", err)
	}
	if _, ok := h.files.Path(second.Cover.Name, filestore.KindCover); !ok {
		t.Fatal("cascade delete removed another upload's cover")
	}
	for size, thumb := range second.Cover.Thumbnails {
		if _, ok := h.files.Path(thumb.Name, filestore.KindCover); !ok {
			t.Fatalf("cascade delete removed another upload's %s thumbnail", size)
		}
	}

	img := testsupport.PNG(t, 32, 32, color.RGBA{R: 255, A: 255})
	cover, err := h.pipeline.SaveCover(ctx, ingest.Upload{Owner: "j.doe", Filename: "art", ContentType: "image/png", Data: img})
	if err != nil {
		t.Fatalf("SaveCover: %v", err)
	}
	if got, want := cover.Thumbnails["small"].Name, cover.Name+"_thumb_small.webp"; got != want {
		t.Fatalf("thumbnail name = %q want %q", got, want)
	}
}

func TestSaveCoverAndThumbnailLookup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	img := testsupport.PNG(t, 320, 200, color.RGBA{B: 255, A: 255})

	result, err := h.pipeline.SaveCover(ctx, ingest.Upload{Owner: "alice", Filename: "art.png", ContentType: "image/png", Data: img})
	if err != nil {
		t.Fatalf("SaveCover: %v", err)
	}
	if len(result.Thumbnails) != 3 || result.ContentType != "image/png" {
		t.Fatalf("unexpected cover result %+v", result)
	}

	path, err := h.pipeline.ThumbnailPath(ctx, "alice", result.Name, "Medium")
	if err != nil || path != result.Thumbnails["medium"].Path {
		t.Fatalf("ThumbnailPath: %q err=%v", path, err)
	}
	if _, err := h.pipeline.ThumbnailPath(ctx, "alice", result.Name, "huge"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown size, got %v", err)
	}
	if _, err := h.pipeline.ThumbnailPath(ctx, "bob", result.Name, "small"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected other owners to get not found, got %v", err)
	}

	listed, err := h.pipeline.ListThumbnails(ctx, "alice", result.Name)
	if err != nil || len(listed) != 3 || listed["large"].Dimensions != "600x600" {
		t.Fatalf("unexpected listing %+v err=%v", listed, err)
	}

	if _, err := h.pipeline.SaveCover(ctx, ingest.Upload{Owner: "alice", Filename: "x.gif", ContentType: "image/gif", Data: []byte("GIF89a")}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected gif to be rejected, got %v", err)
	}

	del, err := h.pipeline.DeleteCover(ctx, "alice", result.Name, true)
	if err != nil || !del.Deleted || len(del.Removed) != 4 {
		t.Fatalf("unexpected delete %+v err=%v", del, err)
	}
	if used, _ := h.catalog.UsedBytes(ctx, "alice"); used != 0 {
		t.Fatalf("expected usage released, got %d", used)
	}
	if _, err := h.pipeline.DeleteCover(ctx, "alice", result.Name, true); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected second delete to be not found, got %v", err)
	}
}

func TestOpenAudioHidesOtherOwners(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	result, err := h.pipeline.SaveAudio(ctx, ingest.Upload{Owner: "alice", Filename: "a.mp3", ContentType: "audio/mpeg", Data: testsupport.MPEGFrames(5)})
	if err != nil {
		t.Fatalf("SaveAudio: %v", err)
	}
	if _, err := h.pipeline.OpenAudio(ctx, "bob", result.Name); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}
	if _, err := h.pipeline.DeleteAudio(ctx, "bob", result.Name, true); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on foreign delete, got %v", err)
	}
	if _, ok := h.files.Path(result.Name, filestore.KindAudio); !ok {
		t.Fatal("foreign delete must not touch the file")
	}
	file, err := h.pipeline.OpenAudio(ctx, "alice", result.Name)
	if err != nil || file.DownloadName != "a.mp3" {
		t.Fatalf("unexpected file %+v err=%v", file, err)
	}
}

func TestDeleteAudioCascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	result, err := h.pipeline.SaveAudio(ctx, ingest.Upload{Owner: "alice", Filename: "a.mp3", ContentType: "audio/mpeg", Data: taggedMP3(t)})
	if err != nil {
		t.Fatalf("SaveAudio: %v", err)
	}

	del, err := h.pipeline.DeleteAudio(ctx, "alice", result.Name, true)
	if err != nil {
		t.Fatalf("DeleteAudio: %v", err)
	}
	if !del.Deleted || len(del.Removed) != 5 {
		t.Fatalf("expected audio, cover and 3 thumbnails removed, got %+v", del)
	}
	if asset, _ := h.catalog.Get(ctx, result.Name); asset != nil {
		t.Fatal("catalog record must be removed")
	}
	if _, ok := h.files.Path(result.Cover.Name, filestore.KindCover); ok {
		t.Fatal("cover must be removed")
	}
}

func TestDeleteAudioWithoutCascadeKeepsCover(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	result, err := h.pipeline.SaveAudio(ctx, ingest.Upload{Owner: "alice", Filename: "a.mp3", ContentType: "audio/mpeg", Data: taggedMP3(t)})
	if err != nil {
		t.Fatalf("SaveAudio: %v", err)
	}
	del, err := h.pipeline.DeleteAudio(ctx, "alice", result.Name, false)
	if err != nil || len(del.Removed) != 1 {
		t.Fatalf("unexpected delete %+v err=%v", del, err)
	}
	if _, err := h.pipeline.CoverFile(ctx, "alice", result.Cover.Name); err != nil {
		t.Fatalf("cover should remain reachable by its owner: %v", err)
	}
	if _, err := h.pipeline.CoverFile(ctx, "bob", result.Cover.Name); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}
}

func TestDeleteAllForOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, name := range []string{"one.mp3", "two.mp3"} {
		if _, err := h.pipeline.SaveAudio(ctx, ingest.Upload{Owner: "alice", Filename: name, ContentType: "audio/mpeg", Data: taggedMP3(t)}); err != nil {
			t.Fatalf("SaveAudio: %v", err)
		}
	}
	bobs, err := h.pipeline.SaveAudio(ctx, ingest.Upload{Owner: "bob", Filename: "b.mp3", ContentType: "audio/mpeg", Data: testsupport.MPEGFrames(3)})
	if err != nil {
		t.Fatalf("SaveAudio bob: %v", err)
	}
	orphan, err := h.files.Save([]byte("orphan"), filestore.KindAudio, "alice", "orphan.mp3")
	if err != nil {
		t.Fatalf("save orphan: %v", err)
	}

	report, err := h.pipeline.DeleteAllForOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("DeleteAllForOwner: %v", err)
	}
	if report.DeletedCount != 2 || report.FilesDeleted != 3 || report.FilesFailed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if _, ok := h.files.Path(orphan.Name, filestore.KindAudio); ok {
		t.Fatal("orphan must be swept")
	}
	if _, ok := h.files.Path(bobs.Name, filestore.KindAudio); !ok {
		t.Fatal("other owners' files must survive")
	}
	if used, _ := h.catalog.UsedBytes(ctx, "alice"); used != 0 {
		t.Fatalf("expected no usage left, got %d", used)
	}

	again, err := h.pipeline.DeleteAllForOwner(ctx, "alice")
	if err != nil || again.DeletedCount != 0 || again.Message != "No tracks found to delete" {
		t.Fatalf("unexpected second report %+v err=%v", again, err)
	}
}
