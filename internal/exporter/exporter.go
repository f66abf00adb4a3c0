// Package exporter pulls a product, test plan, or test case with its
// transitive master data from the server into a container and writes the
// entity document. The pipeline is linear: fetch the target, fetch its
// specification objects, fetch the master data they reference, then
// environments and attachments on request, then write. Any fetch failure
// aborts the export before a file is written.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/FrankSommer-64/issai-sub000/internal/attach"
	"github.com/FrankSommer-64/issai-sub000/internal/config"
	"github.com/FrankSommer-64/issai-sub000/internal/document"
	"github.com/FrankSommer-64/issai-sub000/internal/entity"
	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
	"github.com/FrankSommer-64/issai-sub000/internal/telemetry"
)

// Options controls what an export includes.
type Options struct {
	// IncludeRuns pulls test runs and executions for plan exports, and
	// execution history for case exports.
	IncludeRuns bool
	// IncludeDescendants pulls the whole descendant plan subtree for plan
	// exports.
	IncludeDescendants bool
	// IncludeEnvironments pulls the server's environments.
	IncludeEnvironments bool
	// IncludeAttachments downloads attachment files next to the document.
	IncludeAttachments bool
	// VersionID pins a product export to one version; 0 exports all.
	VersionID int64
	// BuildID pins a product export to one build; 0 exports all.
	BuildID int64
	// OutputDir receives the document and the attachments tree.
	OutputDir string
}

// Exporter orchestrates exports against one server session.
type Exporter struct {
	session  tcms.Session
	opts     Options
	patterns *config.AttachmentPatterns

	Logger     *slog.Logger
	Telemetry  *telemetry.Emitter
	Downloader *attach.Downloader
}

// New returns an exporter. patterns filters attachment downloads by file
// name and may be nil.
func New(session tcms.Session, opts Options, patterns *config.AttachmentPatterns) *Exporter {
	return &Exporter{
		session:  session,
		opts:     opts,
		patterns: patterns,
		Logger:   slog.Default(),
	}
}

// ExportProduct exports a full product: every version and build (or the
// pinned ones), every plan, case, run and execution, and the referenced
// master data. Returns the written document path.
func (e *Exporter) ExportProduct(ctx context.Context, productID int64) (string, error) {
	product, err := e.mustFind(ctx, tcms.ClassProduct, productID)
	if err != nil {
		return "", err
	}
	name := tcms.AsString(product[tcms.IdentifyingAttr(tcms.ClassProduct)])
	e.Telemetry.Record(telemetry.KindExportStart, tcms.ClassProduct.String(), productID, name)

	c := entity.New(entity.TypeProduct, productID, name)
	c.Product = product

	// Whole auxiliary collections are fetched up front for a product
	// export; they are small and all of them belong to the snapshot.
	if err := e.fetchProductMasterData(ctx, c, productID); err != nil {
		return "", err
	}

	for _, catID := range c.MasterData.SortedIDs(tcms.MDCategories) {
		if err := e.fetchInto(ctx, c, tcms.ClassTestCase, tcms.Filter{"category": catID}); err != nil {
			return "", err
		}
	}
	if err := e.fetchInto(ctx, c, tcms.ClassTestPlan, tcms.Filter{"product": productID}); err != nil {
		return "", err
	}
	for _, planID := range c.SortedIDs(entity.GroupTestPlans) {
		if err := e.fetchInto(ctx, c, tcms.ClassTestRun, tcms.Filter{"plan": planID}); err != nil {
			return "", err
		}
	}
	for _, runID := range c.SortedIDs(entity.GroupTestRuns) {
		if err := e.fetchInto(ctx, c, tcms.ClassExecution, tcms.Filter{"run": runID}); err != nil {
			return "", err
		}
	}
	return e.finish(ctx, c)
}

// ExportPlan exports one test plan, optionally with its descendant subtree
// and runs. Returns the written document path.
func (e *Exporter) ExportPlan(ctx context.Context, planID int64) (string, error) {
	plan, err := e.mustFind(ctx, tcms.ClassTestPlan, planID)
	if err != nil {
		return "", err
	}
	name := tcms.AsString(plan["name"])
	e.Telemetry.Record(telemetry.KindExportStart, tcms.ClassTestPlan.String(), planID, name)

	c := entity.New(entity.TypePlan, planID, name)
	productID, _ := tcms.AsID(plan["product"])
	product, err := e.mustFind(ctx, tcms.ClassProduct, productID)
	if err != nil {
		return "", err
	}
	c.Product = product

	plans := []tcms.Object{plan}
	if err := c.Add(entity.GroupTestPlans, plan); err != nil {
		return "", err
	}
	if e.opts.IncludeDescendants {
		for len(plans) > 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			head := plans[0]
			plans = plans[1:]
			children, err := e.session.FindObjects(ctx, tcms.ClassTestPlan, tcms.Filter{"parent": tcms.ObjectID(head)})
			if err != nil {
				return "", fmt.Errorf("fetching child plans of %d: %w", tcms.ObjectID(head), err)
			}
			if err := c.Add(entity.GroupTestPlans, children...); err != nil {
				return "", err
			}
			plans = append(plans, children...)
		}
	}

	for _, pid := range c.SortedIDs(entity.GroupTestPlans) {
		if err := e.fetchInto(ctx, c, tcms.ClassTestCase, tcms.Filter{"plan": pid}); err != nil {
			return "", err
		}
		if e.opts.IncludeRuns {
			if err := e.fetchInto(ctx, c, tcms.ClassTestRun, tcms.Filter{"plan": pid}); err != nil {
				return "", err
			}
		}
	}
	if e.opts.IncludeRuns {
		for _, runID := range c.SortedIDs(entity.GroupTestRuns) {
			if err := e.fetchInto(ctx, c, tcms.ClassExecution, tcms.Filter{"run": runID}); err != nil {
				return "", err
			}
		}
	}
	return e.finish(ctx, c)
}

// ExportCase exports one test case: its owning category and product, the
// case itself, and optionally its executions. Returns the written document
// path.
func (e *Exporter) ExportCase(ctx context.Context, caseID int64) (string, error) {
	tc, err := e.mustFind(ctx, tcms.ClassTestCase, caseID)
	if err != nil {
		return "", err
	}
	name := tcms.AsString(tc["summary"])
	e.Telemetry.Record(telemetry.KindExportStart, tcms.ClassTestCase.String(), caseID, name)

	c := entity.New(entity.TypeCase, caseID, name)
	categoryID, _ := tcms.AsID(tc["category"])
	category, err := e.mustFind(ctx, tcms.ClassCategory, categoryID)
	if err != nil {
		return "", err
	}
	productID, _ := tcms.AsID(category["product"])
	product, err := e.mustFind(ctx, tcms.ClassProduct, productID)
	if err != nil {
		return "", err
	}
	c.Product = product
	if err := c.MasterData.AddObject(tcms.MDCategories, category); err != nil {
		return "", err
	}
	if err := c.Add(entity.GroupTestCases, tc); err != nil {
		return "", err
	}
	if e.opts.IncludeRuns {
		if err := e.fetchInto(ctx, c, tcms.ClassExecution, tcms.Filter{"case": caseID}); err != nil {
			return "", err
		}
	}
	return e.finish(ctx, c)
}

// fetchProductMasterData pulls versions, builds, categories and components
// of a product, honoring version/build pinning.
func (e *Exporter) fetchProductMasterData(ctx context.Context, c *entity.Container, productID int64) error {
	var versions []tcms.Object
	var err error
	if e.opts.VersionID != 0 {
		v, ferr := e.mustFind(ctx, tcms.ClassVersion, e.opts.VersionID)
		if ferr != nil {
			return ferr
		}
		versions = []tcms.Object{v}
	} else {
		versions, err = e.session.FindObjects(ctx, tcms.ClassVersion, tcms.Filter{"product": productID})
		if err != nil {
			return fmt.Errorf("fetching versions of product %d: %w", productID, err)
		}
	}
	for _, v := range versions {
		if err := c.MasterData.AddObject(tcms.MDVersions, v); err != nil {
			return err
		}
		var builds []tcms.Object
		if e.opts.BuildID != 0 {
			b, ferr := e.mustFind(ctx, tcms.ClassBuild, e.opts.BuildID)
			if ferr != nil {
				return ferr
			}
			builds = []tcms.Object{b}
		} else {
			builds, err = e.session.FindObjects(ctx, tcms.ClassBuild, tcms.Filter{"version": tcms.ObjectID(v)})
			if err != nil {
				return fmt.Errorf("fetching builds of version %d: %w", tcms.ObjectID(v), err)
			}
		}
		for _, b := range builds {
			if err := c.MasterData.AddObject(tcms.MDBuilds, b); err != nil {
				return err
			}
		}
	}

	for mdType, class := range map[string]tcms.Class{
		tcms.MDCategories: tcms.ClassCategory,
		tcms.MDComponents: tcms.ClassComponent,
	} {
		objs, err := e.session.FindObjects(ctx, class, tcms.Filter{"product": productID})
		if err != nil {
			return fmt.Errorf("fetching %s of product %d: %w", mdType, productID, err)
		}
		for _, obj := range objs {
			if err := c.MasterData.AddObject(mdType, obj); err != nil {
				return err
			}
		}
	}
	return nil
}

// mustFind fetches one object by id and fails when it does not exist.
func (e *Exporter) mustFind(ctx context.Context, class tcms.Class, id int64) (tcms.Object, error) {
	obj, err := e.session.FindObject(ctx, class, tcms.Filter{"id": id})
	if err != nil {
		return nil, fmt.Errorf("fetching %s %d: %w", class, id, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("fetching %s %d: %w", class, id, tcms.ErrNotFound)
	}
	return obj, nil
}

// fetchInto fetches every object of a specification class matching filter
// into the container's group.
func (e *Exporter) fetchInto(ctx context.Context, c *entity.Container, class tcms.Class, filter tcms.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	objs, err := e.session.FindObjects(ctx, class, filter)
	if err != nil {
		return fmt.Errorf("fetching %s %v: %w", class, filter, err)
	}
	return c.AddObjects(class, objs...)
}

// finish runs the trailing pipeline stages shared by all export kinds.
func (e *Exporter) finish(ctx context.Context, c *entity.Container) (string, error) {
	if err := e.fetchReferencedMasterData(ctx, c); err != nil {
		return "", err
	}
	if e.opts.IncludeEnvironments {
		if err := e.fetchEnvironments(ctx, c); err != nil {
			return "", err
		}
	}
	if e.opts.IncludeAttachments {
		if err := e.downloadAttachments(ctx, c); err != nil {
			return "", err
		}
	}
	path := filepath.Join(e.opts.OutputDir, document.FileName(c))
	if err := document.Save(path, c); err != nil {
		return "", err
	}
	e.Logger.Info("export complete", "entity", c.Type, "id", c.ID, "name", c.Name,
		"objects", c.ObjectCount(), "file", path)
	e.Telemetry.Record(telemetry.KindExportDone, string(c.Type), c.ID, c.Name)
	return path, nil
}

func (e *Exporter) fetchEnvironments(ctx context.Context, c *entity.Container) error {
	for _, g := range c.Groups() {
		if g == entity.GroupEnvironments {
			return e.fetchInto(ctx, c, tcms.ClassEnvironment, tcms.Filter{})
		}
	}
	return nil
}
