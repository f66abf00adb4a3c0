package exporter

import (
	"context"
	"fmt"
	"sort"

	"github.com/FrankSommer-64/issai-sub000/internal/attach"
	"github.com/FrankSommer-64/issai-sub000/internal/entity"
	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
	"github.com/FrankSommer-64/issai-sub000/internal/telemetry"
)

// fetchReferencedMasterData completes the master-data store from the
// container's own contents: it gathers every master-data id referenced by
// the objects already fetched and fetches exactly those ids, repeating
// until no new references surface (fetched master data can itself
// reference more, a build its version, a version its product). Whole
// collections are never pulled here.
func (e *Exporter) fetchReferencedMasterData(ctx context.Context, c *entity.Container) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		missing := e.missingReferences(c)
		if len(missing) == 0 {
			return nil
		}
		for _, ref := range missing {
			obj, err := e.mustFind(ctx, ref.class, ref.id)
			if err != nil {
				return err
			}
			mdType, _ := tcms.MasterDataTypeFor(ref.class)
			if err := c.MasterData.AddObject(mdType, obj); err != nil {
				return err
			}
		}
	}
}

type mdRef struct {
	class tcms.Class
	id    int64
}

// missingReferences scans the container for master-data ids referenced but
// not yet present in the store, in class dependency order.
func (e *Exporter) missingReferences(c *entity.Container) []mdRef {
	var missing []mdRef
	for _, class := range tcms.DependencyOrder() {
		mdType, ok := tcms.MasterDataTypeFor(class)
		if !ok {
			continue
		}
		present, err := c.MasterData.ObjectsOfType(mdType)
		if err != nil {
			continue
		}
		wanted := make(map[int64]struct{})
		for _, ref := range tcms.ReferencesTo(class) {
			for _, obj := range e.referencingObjects(c, ref.Class) {
				collectRefIDs(obj, ref, wanted)
			}
		}
		ids := make([]int64, 0, len(wanted))
		for id := range wanted {
			if _, ok := present[id]; !ok && id != 0 {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			missing = append(missing, mdRef{class: class, id: id})
		}
	}
	return missing
}

// referencingObjects returns every container object of the given class that
// could hold references: group members, master data, or the product
// singleton.
func (e *Exporter) referencingObjects(c *entity.Container, class tcms.Class) []tcms.Object {
	if class == tcms.ClassProduct {
		if c.Product != nil {
			return []tcms.Object{c.Product}
		}
		return nil
	}
	if mdType, ok := tcms.MasterDataTypeFor(class); ok {
		coll, err := c.MasterData.ObjectsOfType(mdType)
		if err != nil {
			return nil
		}
		objs := make([]tcms.Object, 0, len(coll))
		for _, obj := range coll {
			objs = append(objs, obj)
		}
		return objs
	}
	if g, ok := entity.GroupFor(class); ok {
		coll := c.Objects(g)
		objs := make([]tcms.Object, 0, len(coll))
		for _, obj := range coll {
			objs = append(objs, obj)
		}
		return objs
	}
	return nil
}

func collectRefIDs(obj tcms.Object, ref tcms.Ref, into map[int64]struct{}) {
	v, ok := obj[ref.Attr]
	if !ok || v == nil {
		return
	}
	if ref.List {
		if ids, ok := tcms.AsIDList(v); ok {
			for _, id := range ids {
				into[id] = struct{}{}
			}
		}
		return
	}
	if id, ok := tcms.AsID(v); ok {
		into[id] = struct{}{}
	}
}

// downloadAttachments fetches every attachment referenced by the container
// into the layout under OutputDir, honoring the download patterns.
func (e *Exporter) downloadAttachments(ctx context.Context, c *entity.Container) error {
	if e.Downloader == nil {
		e.Downloader = attach.NewDownloader("")
	}
	byClass := c.Attachments()
	classes := make([]tcms.Class, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	for _, class := range classes {
		for id, urls := range byClass[class] {
			for _, rawURL := range urls {
				if err := ctx.Err(); err != nil {
					return err
				}
				name := attach.FileName(rawURL)
				if e.patterns != nil && !e.patterns.Allows(name) {
					e.Logger.Debug("attachment excluded by pattern", "file", name)
					continue
				}
				dest := attach.LocalPath(e.opts.OutputDir, class, id, rawURL)
				if err := e.Downloader.Fetch(ctx, rawURL, dest); err != nil {
					return fmt.Errorf("attachment of %s %d: %w", class, id, err)
				}
				e.Telemetry.Record(telemetry.KindAttachmentFetched, class.String(), id, name)
			}
		}
	}
	return nil
}
