package ingest

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"audiovault/internal/catalog"
	"audiovault/internal/filestore"
	"audiovault/internal/logging"
	"audiovault/internal/services"
)

// BulkDeleteReport summarizes DeleteAllForOwner.
type BulkDeleteReport struct {
	Message      string   `json:"message"`
	DeletedCount int      `json:"deleted_count"`
	FilesDeleted int      `json:"files_deleted"`
	FilesFailed  int      `json:"files_failed"`
	FailedFiles  []string `json:"failed_files"`
}

// DeleteAudio removes an owned audio file and its catalog record. With
// cascade the cover and its thumbnails go too. The record is kept only when
// the audio file itself could not be removed.
func (p *Pipeline) DeleteAudio(ctx context.Context, owner, name string, cascade bool) (filestore.DeleteResult, error) {
	ctx = services.WithOwner(ctx, owner)
	asset, err := p.catalog.Get(ctx, name)
	if err != nil {
		return filestore.DeleteResult{}, services.Wrap(services.ErrIO, "ingest", "delete audio", name, err)
	}
	if asset == nil || asset.Owner != owner || asset.Kind != catalog.KindAudio {
		return filestore.DeleteResult{}, services.Wrap(services.ErrNotFound, "ingest", "delete audio", fmt.Sprintf("track %s not found", name), nil)
	}

	result := p.files.Delete(name, filestore.KindAudio, cascade)
	if !result.Deleted && primaryFailed(result, name) {
		return result, services.Wrap(services.ErrIO, "ingest", "delete audio", name, nil)
	}
	if _, err := p.catalog.Remove(ctx, name); err != nil {
		return result, services.Wrap(services.ErrIO, "ingest", "delete audio", "remove record", err)
	}
	logging.WithContext(ctx, p.logger).Info("audio deleted",
		logging.String(logging.FieldAsset, name),
		logging.Bool("cascade", cascade),
		logging.Int("removed", len(result.Removed)),
		logging.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// DeleteCover removes an owned cover and, when thumbnails is set, its
// thumbnails. Missing covers are reported as ErrNotFound.
func (p *Pipeline) DeleteCover(ctx context.Context, owner, name string, thumbnails bool) (filestore.DeleteResult, error) {
	ctx = services.WithOwner(ctx, owner)
	owned, err := p.ownsCover(ctx, owner, name)
	if err != nil {
		return filestore.DeleteResult{}, err
	}
	if !owned {
		return filestore.DeleteResult{}, services.Wrap(services.ErrNotFound, "ingest", "delete cover", name, nil)
	}
	result := p.files.Delete(name, filestore.KindCover, thumbnails)
	if !result.Deleted {
		if primaryFailed(result, name) {
			return result, services.Wrap(services.ErrIO, "ingest", "delete cover", name, nil)
		}
		return result, services.Wrap(services.ErrNotFound, "ingest", "delete cover", fmt.Sprintf("cover %s not found", name), nil)
	}
	if _, err := p.catalog.Remove(ctx, name); err != nil {
		return result, services.Wrap(services.ErrIO, "ingest", "delete cover", "remove record", err)
	}
	if err := p.catalog.ClearCover(ctx, name); err != nil {
		return result, services.Wrap(services.ErrIO, "ingest", "delete cover", "clear cover", err)
	}
	logging.WithContext(ctx, p.logger).Info("cover deleted",
		logging.String(logging.FieldAsset, name),
		logging.Bool("thumbnails", thumbnails),
		logging.Int("removed", len(result.Removed)),
	)
	return result, nil
}

// DeleteAllForOwner removes every audio file owner has, cascading to covers
// and thumbnails, one file at a time. Files the catalog no longer knows but
// that carry owner's name prefix are swept as well. A failed file never stops
// the others, and calling it again retries whatever is left.
func (p *Pipeline) DeleteAllForOwner(ctx context.Context, owner string) (BulkDeleteReport, error) {
	ctx = services.WithOwner(ctx, owner)
	logger := logging.WithContext(ctx, p.logger)

	assets, err := p.catalog.ListByOwner(ctx, owner, catalog.KindAudio)
	if err != nil {
		return BulkDeleteReport{}, services.Wrap(services.ErrIO, "ingest", "delete all", "list tracks", err)
	}
	onDisk, err := p.files.OwnedAudio(owner)
	if err != nil {
		logger.Warn("orphan sweep skipped", logging.Error(err))
	}
	recorded := lo.Map(assets, func(asset catalog.Asset, _ int) string { return asset.Name })
	names := lo.Uniq(append(recorded, onDisk...))

	report := BulkDeleteReport{FailedFiles: []string{}}
	if len(names) == 0 {
		report.Message = "No tracks found to delete"
		return report, nil
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := p.files.Delete(name, filestore.KindAudio, true)
		if !result.Deleted && primaryFailed(result, name) {
			report.FailedFiles = append(report.FailedFiles, fmt.Sprintf("%s (error: %s)", name, result.Failed[0].Error))
			logger.Warn("track deletion failed", logging.String(logging.FieldAsset, name))
			continue
		}
		if result.Deleted {
			report.FilesDeleted++
		}
		if !slices.Contains(recorded, name) {
			continue
		}
		removed, err := p.catalog.Remove(ctx, name)
		if err != nil {
			report.FailedFiles = append(report.FailedFiles, fmt.Sprintf("%s (error: %v)", name, err))
			continue
		}
		if removed {
			report.DeletedCount++
		}
	}
	report.FilesFailed = len(report.FailedFiles)
	report.Message = bulkMessage(report)
	logger.Info("owner tracks deleted",
		logging.Int("records", report.DeletedCount),
		logging.Int("files", report.FilesDeleted),
		logging.Int("failed", report.FilesFailed),
	)
	return report, nil
}

func primaryFailed(result filestore.DeleteResult, name string) bool {
	return lo.SomeBy(result.Failed, func(f filestore.DeleteFailure) bool { return f.Name == name })
}

func bulkMessage(report BulkDeleteReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Successfully deleted %d track records", report.DeletedCount)
	if report.FilesDeleted > 0 {
		fmt.Fprintf(&b, " and %d files from storage", report.FilesDeleted)
	}
	if report.FilesFailed > 0 {
		fmt.Fprintf(&b, ". Failed to delete %d files: %s", report.FilesFailed, strings.Join(report.FailedFiles, ", "))
	}
	return b.String()
}
