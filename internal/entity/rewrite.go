package entity

import (
	"fmt"

	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
)

// ReplaceObject installs newObj in place of the object previously stored
// under oldID and rewrites every reference to oldID throughout the container
// (group collections, master data, and the product singleton) to newObj's
// id. Objects that do not reference oldID are untouched; list-valued
// references keep the position and value of all other elements.
//
// If a different object already occupies the new id in the destination
// collection, the rewrite fails with ErrIDCollision: overwriting would
// silently fuse two distinct objects. Callers that want the fusing behavior
// (user identity collapse) use MergeObject.
func (c *Container) ReplaceObject(class tcms.Class, oldID int64, newObj tcms.Object) error {
	return c.replace(class, oldID, newObj, false)
}

// MergeObject behaves like ReplaceObject, but when the new id is already
// occupied it drops the vacated entry instead of failing, collapsing the two
// container objects onto the one server object. References to oldID are
// still rewritten.
func (c *Container) MergeObject(class tcms.Class, oldID int64, newObj tcms.Object) error {
	return c.replace(class, oldID, newObj, true)
}

func (c *Container) replace(class tcms.Class, oldID int64, newObj tcms.Object, merge bool) error {
	newID := tcms.ObjectID(newObj)
	for _, ref := range tcms.ReferencesTo(class) {
		c.rewriteRefs(ref, oldID, newID)
	}

	// The product is a singleton attribute, not a keyed collection.
	if class == tcms.ClassProduct {
		c.Product = newObj
		return nil
	}
	if mdType, ok := tcms.MasterDataTypeFor(class); ok {
		err := c.MasterData.install(mdType, oldID, newObj)
		if err != nil && merge {
			c.MasterData.drop(mdType, oldID)
			return nil
		}
		return err
	}
	g, ok := GroupFor(class)
	if !ok {
		return fmt.Errorf("%w: class %s has no entity group", ErrInvalidGroup, class)
	}
	coll := c.groups[g]
	if coll == nil {
		coll = make(map[int64]tcms.Object)
		c.groups[g] = coll
	}
	if newID != oldID {
		if _, occupied := coll[newID]; occupied {
			if !merge {
				return fmt.Errorf("%w: %s id %d", ErrIDCollision, g, newID)
			}
			delete(coll, oldID)
			return nil
		}
	}
	delete(coll, oldID)
	coll[newID] = newObj
	return nil
}

// rewriteRefs updates one (class, attribute) reference slot across every
// object collection that can hold objects of ref.Class.
func (c *Container) rewriteRefs(ref tcms.Ref, oldID, newID int64) {
	if ref.Class == tcms.ClassProduct {
		if c.Product != nil {
			rewriteAttr(c.Product, ref, oldID, newID)
		}
		return
	}
	if mdType, ok := tcms.MasterDataTypeFor(ref.Class); ok {
		for _, obj := range c.MasterData.types[mdType] {
			rewriteAttr(obj, ref, oldID, newID)
		}
		return
	}
	if g, ok := GroupFor(ref.Class); ok {
		for _, obj := range c.groups[g] {
			rewriteAttr(obj, ref, oldID, newID)
		}
	}
}

func rewriteAttr(obj tcms.Object, ref tcms.Ref, oldID, newID int64) {
	v, ok := obj[ref.Attr]
	if !ok || v == nil {
		return
	}
	if ref.List {
		switch list := v.(type) {
		case []int64:
			for i, e := range list {
				if e == oldID {
					list[i] = newID
				}
			}
		case []any:
			for i, e := range list {
				if id, ok := tcms.AsID(e); ok && id == oldID {
					list[i] = newID
				}
			}
		}
		return
	}
	if id, ok := tcms.AsID(v); ok && id == oldID {
		obj[ref.Attr] = newID
	}
}
