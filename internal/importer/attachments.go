package importer

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/FrankSommer-64/issai-sub000/internal/attach"
	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
	"github.com/FrankSommer-64/issai-sub000/internal/telemetry"
)

// uploadAttachments walks the container's attachment map and uploads every
// locally present file to its owning object. Missing files are warned
// about and skipped; a dry run logs instead of uploading.
func (imp *Importer) uploadAttachments(ctx context.Context, o *Outcome) error {
	byClass := imp.c.Attachments()
	classes := make([]tcms.Class, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	for _, class := range classes {
		byObject := byClass[class]
		ids := make([]int64, 0, len(byObject))
		for id := range byObject {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			for _, rawURL := range byObject[id] {
				if err := ctx.Err(); err != nil {
					return err
				}
				name := attach.FileName(rawURL)
				if imp.opts.UploadPatterns != nil && !imp.opts.UploadPatterns.Allows(name) {
					continue
				}
				local := attach.LocalPath(imp.opts.BaseDir, class, id, rawURL)
				data, err := os.ReadFile(local)
				if err != nil {
					o.warnf("attachment %s of %s %d not readable, skipped: %v", local, class, id, err)
					continue
				}
				if imp.opts.DryRun {
					imp.Logger.Info("dry-run: would upload", "class", class.String(), "id", id, "file", name)
					continue
				}
				if _, err := imp.session.UploadAttachment(ctx, class, id, name, data); err != nil {
					return fmt.Errorf("uploading %s to %s %d: %w", name, class, id, err)
				}
				o.Uploaded++
				imp.Telemetry.Record(telemetry.KindAttachmentUploaded, class.String(), id, name)
			}
		}
	}
	return nil
}
