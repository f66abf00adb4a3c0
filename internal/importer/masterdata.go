package importer

import (
	"context"
	"fmt"

	"github.com/FrankSommer-64/issai-sub000/internal/config"
	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
)

// prepareMasterData reconciles every master-data object, walking classes in
// dependency order so scope references (a build's version, a category's
// product) are resolved before they are used in match filters. Users are
// handled separately by prepareUsers.
func (imp *Importer) prepareMasterData(ctx context.Context, o *Outcome) error {
	for _, class := range tcms.DependencyOrder() {
		mdType, ok := tcms.MasterDataTypeFor(class)
		if !ok || class == tcms.ClassUser {
			continue
		}
		for _, id := range imp.c.MasterData.SortedIDs(mdType) {
			if err := ctx.Err(); err != nil {
				return err
			}
			obj, err := imp.c.MasterData.Object(mdType, id)
			if err != nil {
				return err
			}
			if obj == nil {
				continue // replaced by an earlier merge in this sweep
			}
			if err := imp.prepareMasterDataObject(ctx, o, class, id, obj); err != nil {
				return err
			}
		}
	}
	return nil
}

func (imp *Importer) prepareMasterDataObject(ctx context.Context, o *Outcome, class tcms.Class, id int64, obj tcms.Object) error {
	st, err := tcms.Match(ctx, imp.session, class, obj)
	if err != nil {
		return err
	}
	name := tcms.AsString(obj[tcms.IdentifyingAttr(class)])
	switch st.Kind {
	case tcms.ExactMatch:
		o.Skipped++
		imp.skip(class, obj, "exists")
		return nil
	case tcms.OtherNameMatch:
		imp.matched(class, obj, st.Server)
		if err := imp.c.ReplaceObject(class, id, st.Server); err != nil {
			o.errorf("replacing %s %q: %v", class, name, err)
		}
		return nil
	}

	// NO_MATCH branches.
	if class == tcms.ClassPriority {
		// The server offers no API to create priorities.
		o.errorf("priority %q does not exist on the server and cannot be created", name)
		return nil
	}
	if (class == tcms.ClassBuild || class == tcms.ClassVersion) && name == UnspecifiedSentinel {
		// The server auto-creates the "unspecified" build/version together
		// with its parent; creating it again would fail.
		o.Skipped++
		imp.skip(class, obj, "auto-created by server")
		return nil
	}
	if !imp.opts.AutoCreate {
		o.errorf("%s %q does not exist on the server; rerun with auto-create to create it", class, name)
		return nil
	}

	created, err := imp.create(ctx, o, class, obj)
	if err != nil || created == nil {
		return err
	}
	// Component case links do not survive a create call; carry the
	// container's case set over to the installed object.
	if class == tcms.ClassComponent {
		if cases, ok := obj["cases"]; ok {
			created["cases"] = cases
		}
	}
	if err := imp.c.ReplaceObject(class, id, created); err != nil {
		o.errorf("installing created %s %q: %v", class, name, err)
	}
	return nil
}

// prepareUsers applies the user-reference policy. Specification data moves
// between installations with disjoint accounts, so user identity is not a
// plain name match: the policy decides whether recorded users are kept,
// replaced wholesale with the importing identity, or replaced only when
// missing.
func (imp *Importer) prepareUsers(ctx context.Context, o *Outcome) error {
	ids := imp.c.MasterData.SortedIDs(tcms.MDUsers)
	if len(ids) == 0 {
		return nil
	}

	if imp.opts.UserPolicy == config.UserPolicyAlways {
		current, err := imp.user(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if id == tcms.ObjectID(current) {
				continue
			}
			// Distinct recorded users may collapse onto the one importing
			// identity; MergeObject drops the vacated entries.
			if err := imp.c.MergeObject(tcms.ClassUser, id, current); err != nil {
				return err
			}
			o.Updated++
		}
		return nil
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, err := imp.c.MasterData.Object(tcms.MDUsers, id)
		if err != nil {
			return err
		}
		if obj == nil {
			continue
		}
		username := tcms.AsString(obj["username"])
		st, err := tcms.Match(ctx, imp.session, tcms.ClassUser, obj)
		if err != nil {
			return err
		}
		switch st.Kind {
		case tcms.ExactMatch:
			o.Skipped++
			imp.skip(tcms.ClassUser, obj, "exists")
		case tcms.OtherNameMatch:
			imp.matched(tcms.ClassUser, obj, st.Server)
			if err := imp.c.MergeObject(tcms.ClassUser, id, st.Server); err != nil {
				return err
			}
		case tcms.NoMatch:
			if imp.opts.UserPolicy == config.UserPolicyMissing {
				current, err := imp.user(ctx)
				if err != nil {
					return err
				}
				if err := imp.c.MergeObject(tcms.ClassUser, id, current); err != nil {
					return err
				}
				o.Updated++
				continue
			}
			o.errorf("user %q does not exist on the server; use a user policy other than %q to map it",
				username, config.UserPolicyNever)
		}
	}
	return nil
}

// resolveTester maps a recorded tester name to a server user id under the
// user policy. Returns 0 with no error when the reference should be left
// unset.
func (imp *Importer) resolveTester(ctx context.Context, o *Outcome, username string) (int64, error) {
	if imp.opts.UserPolicy == config.UserPolicyAlways {
		current, err := imp.user(ctx)
		if err != nil {
			return 0, err
		}
		return tcms.ObjectID(current), nil
	}
	if username == "" {
		return 0, nil
	}
	found, err := imp.session.FindObject(ctx, tcms.ClassUser, tcms.Filter{"username": username})
	if err != nil {
		return 0, fmt.Errorf("resolving tester %q: %w", username, err)
	}
	if found != nil {
		return tcms.ObjectID(found), nil
	}
	if imp.opts.UserPolicy == config.UserPolicyMissing {
		current, err := imp.user(ctx)
		if err != nil {
			return 0, err
		}
		return tcms.ObjectID(current), nil
	}
	o.errorf("tester %q does not exist on the server; use a user policy other than %q to map it",
		username, config.UserPolicyNever)
	return 0, nil
}
