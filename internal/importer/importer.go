// Package importer reconciles an entity container against a live server:
// it matches every object, creates missing master data, creates or merges
// specification objects, rewrites foreign ids throughout the container,
// uploads attachments, and pushes recorded outcomes for result containers.
//
// The orchestrator runs two error tiers. Hard technical failures (server
// communication, a container that cannot possibly be imported) abort
// immediately. Business-rule violations (a missing priority, an unknown
// user under the never policy) accumulate in the Outcome and the import
// continues, reporting overall failure at the end.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FrankSommer-64/issai-sub000/internal/config"
	"github.com/FrankSommer-64/issai-sub000/internal/entity"
	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
	"github.com/FrankSommer-64/issai-sub000/internal/telemetry"
)

var (
	// ErrNoProduct is returned when a specification container carries no
	// product object.
	ErrNoProduct = errors.New("container has no product")
	// ErrProductMissing is returned when a plan or case container's
	// product does not exist on the server; a product cannot be created as
	// a side effect of importing a plan or case.
	ErrProductMissing = errors.New("product not found on server")
	// ErrOrphanedPlans is returned when the plan hierarchy import stops
	// making progress: the remaining plans have parents that never
	// resolved. They are named rather than silently dropped.
	ErrOrphanedPlans = errors.New("orphaned plans with unresolvable parents")
)

// UnspecifiedSentinel is the identifying value the server gives the build
// and version it auto-creates with a new product. Objects carrying it are
// never created explicitly.
const UnspecifiedSentinel = "unspecified"

// Options controls import behavior.
type Options struct {
	// DryRun suppresses every server mutation; matching still runs.
	DryRun bool
	// AutoCreate permits creating missing master data. Without it a
	// missing master-data object is an error.
	AutoCreate bool
	// WithEnvironments imports the environments group.
	WithEnvironments bool
	// WithAttachments uploads attachment files.
	WithAttachments bool
	// UserPolicy maps recorded user references onto server accounts.
	UserPolicy config.UserPolicy
	// BaseDir is the directory of the source document; attachment files
	// are resolved relative to it.
	BaseDir string
	// UploadPatterns filters attachment uploads by file name; nil admits
	// everything.
	UploadPatterns *config.AttachmentPatterns
	// StatusMap remaps recorded execution status names to the target
	// installation's names; nil is the identity.
	StatusMap func(string) string
}

// Importer reconciles one container against one server session. An
// importer is single-use: Run may be called once.
type Importer struct {
	session tcms.Session
	c       *entity.Container
	opts    Options

	Logger    *slog.Logger
	Telemetry *telemetry.Emitter

	currentUser tcms.Object
}

// New returns an importer for the container.
func New(session tcms.Session, c *entity.Container, opts Options) *Importer {
	if opts.UserPolicy == "" {
		opts.UserPolicy = config.UserPolicyNever
	}
	if opts.StatusMap == nil {
		opts.StatusMap = func(s string) string { return s }
	}
	return &Importer{
		session: session,
		c:       c,
		opts:    opts,
		Logger:  slog.Default(),
	}
}

// Run executes the import. The returned Outcome is non-nil even on hard
// failure and holds whatever accumulated before the abort.
func (imp *Importer) Run(ctx context.Context) (*Outcome, error) {
	o := &Outcome{}
	imp.Telemetry.Record(telemetry.KindImportStart, string(imp.c.Type), imp.c.ID, imp.c.Name)

	var err error
	if imp.c.Type == entity.TypePlanResult {
		err = imp.runResults(ctx, o)
	} else {
		err = imp.runSpecification(ctx, o)
	}
	if err != nil {
		return o, err
	}

	imp.Logger.Info("import complete", "entity", imp.c.Type, "id", imp.c.ID,
		"dry_run", imp.opts.DryRun, "summary", o.Summary())
	imp.Telemetry.Record(telemetry.KindImportDone, string(imp.c.Type), imp.c.ID, imp.c.Name)
	return o, nil
}

// runSpecification is the sequence for product, plan and case containers.
func (imp *Importer) runSpecification(ctx context.Context, o *Outcome) error {
	if err := imp.prepareProduct(ctx, o); err != nil {
		return err
	}
	if err := imp.prepareMasterData(ctx, o); err != nil {
		return err
	}
	if err := imp.prepareUsers(ctx, o); err != nil {
		return err
	}
	if imp.opts.WithEnvironments {
		if err := imp.importEnvironments(ctx, o); err != nil {
			return err
		}
	}
	if err := imp.importCases(ctx, o); err != nil {
		return err
	}
	if imp.c.Type != entity.TypeCase {
		if err := imp.importPlans(ctx, o); err != nil {
			return err
		}
		if err := imp.importRuns(ctx, o); err != nil {
			return err
		}
	}
	if err := imp.importExecutions(ctx, o); err != nil {
		return err
	}
	if imp.opts.WithAttachments {
		if err := imp.uploadAttachments(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

// user returns the session's identity, resolved once.
func (imp *Importer) user(ctx context.Context) (tcms.Object, error) {
	if imp.currentUser != nil {
		return imp.currentUser, nil
	}
	u, err := imp.session.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving current user: %w", err)
	}
	imp.currentUser = u
	return u, nil
}

// prepareProduct reconciles the container's product singleton. A product
// that exists under any id short-circuits to a reference rewrite. A product
// missing on the server may only be created when the container itself is a
// product snapshot; its classification is resolved or created first.
func (imp *Importer) prepareProduct(ctx context.Context, o *Outcome) error {
	product := imp.c.Product
	if product == nil {
		return ErrNoProduct
	}
	st, err := tcms.Match(ctx, imp.session, tcms.ClassProduct, product)
	if err != nil {
		return err
	}
	name := tcms.AsString(product["name"])
	switch st.Kind {
	case tcms.ExactMatch:
		o.Skipped++
		imp.skip(tcms.ClassProduct, product, "exists")
		return nil
	case tcms.OtherNameMatch:
		imp.matched(tcms.ClassProduct, product, st.Server)
		return imp.c.ReplaceObject(tcms.ClassProduct, tcms.ObjectID(product), st.Server)
	}

	// A product is never created silently as a side effect of importing a
	// plan or case; auto-create makes the side effect explicit.
	if imp.c.Type != entity.TypeProduct && !imp.opts.AutoCreate {
		return fmt.Errorf("%w: %q cannot be created while importing a %s container without auto-create",
			ErrProductMissing, name, imp.c.Type)
	}
	if err := imp.prepareClassification(ctx, o, product); err != nil {
		return err
	}
	created, err := imp.create(ctx, o, tcms.ClassProduct, product)
	if err != nil || created == nil {
		return err
	}
	return imp.c.ReplaceObject(tcms.ClassProduct, tcms.ObjectID(product), created)
}

// prepareClassification resolves the classification the product references
// before the product itself can be created.
func (imp *Importer) prepareClassification(ctx context.Context, o *Outcome, product tcms.Object) error {
	classID, ok := tcms.AsID(product["classification"])
	if !ok {
		return nil
	}
	obj, err := imp.c.MasterData.Object(tcms.MDClassifications, classID)
	if err != nil {
		return err
	}
	if obj == nil {
		return fmt.Errorf("classification %d referenced by product is not in the container", classID)
	}
	st, err := tcms.Match(ctx, imp.session, tcms.ClassClassification, obj)
	if err != nil {
		return err
	}
	switch st.Kind {
	case tcms.ExactMatch:
		o.Skipped++
		return nil
	case tcms.OtherNameMatch:
		imp.matched(tcms.ClassClassification, obj, st.Server)
		return imp.c.ReplaceObject(tcms.ClassClassification, classID, st.Server)
	}
	if !imp.opts.AutoCreate {
		o.errorf("classification %q does not exist on the server; rerun with auto-create to create it",
			tcms.AsString(obj["name"]))
		return nil
	}
	created, err := imp.create(ctx, o, tcms.ClassClassification, obj)
	if err != nil || created == nil {
		return err
	}
	return imp.c.ReplaceObject(tcms.ClassClassification, classID, created)
}

// create performs one server-side creation, or logs it under dry-run. The
// object's id attribute is stripped; the server assigns the real one.
// Returns nil without error when the creation was suppressed.
func (imp *Importer) create(ctx context.Context, o *Outcome, class tcms.Class, obj tcms.Object) (tcms.Object, error) {
	name := tcms.AsString(obj[tcms.IdentifyingAttr(class)])
	if imp.opts.DryRun {
		o.Created++
		imp.Logger.Info("dry-run: would create", "class", class.String(), "name", name)
		imp.Telemetry.Record(telemetry.KindObjectCreated, class.String(), tcms.ObjectID(obj), name)
		return nil, nil
	}
	attrs := obj.Clone()
	delete(attrs, "id")
	delete(attrs, "attachments")
	created, err := imp.session.CreateObject(ctx, class, attrs)
	if err != nil {
		return nil, fmt.Errorf("creating %s %q: %w", class, name, err)
	}
	o.Created++
	imp.Logger.Debug("created", "class", class.String(), "name", name, "id", tcms.ObjectID(created))
	imp.Telemetry.Record(telemetry.KindObjectCreated, class.String(), tcms.ObjectID(created), name)
	return created, nil
}

func (imp *Importer) skip(class tcms.Class, obj tcms.Object, reason string) {
	name := tcms.AsString(obj[tcms.IdentifyingAttr(class)])
	if imp.opts.DryRun {
		imp.Logger.Info("dry-run: skipping", "class", class.String(), "name", name, "reason", reason)
	}
	imp.Telemetry.Record(telemetry.KindObjectSkipped, class.String(), tcms.ObjectID(obj), name)
}

func (imp *Importer) matched(class tcms.Class, obj, server tcms.Object) {
	name := tcms.AsString(obj[tcms.IdentifyingAttr(class)])
	imp.Logger.Debug("matched under different id", "class", class.String(), "name", name,
		"container_id", tcms.ObjectID(obj), "server_id", tcms.ObjectID(server))
	imp.Telemetry.Record(telemetry.KindObjectMatched, class.String(), tcms.ObjectID(server), name)
}
