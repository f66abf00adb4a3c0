package document

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/FrankSommer-64/issai-sub000/internal/entity"
	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
)

// Ext is the file extension of entity documents.
const Ext = ".toml"

// FileName returns the conventional document name for a container:
// "<product-name>.toml" for products, "testplan_<id>.toml" for plans,
// "testcase_<id>.toml" for cases, "result_<id>.toml" for plan results.
func FileName(c *entity.Container) string {
	switch c.Type {
	case entity.TypeProduct:
		return c.Name + Ext
	case entity.TypePlan:
		return fmt.Sprintf("testplan_%d%s", c.ID, Ext)
	case entity.TypeCase:
		return fmt.Sprintf("testcase_%d%s", c.ID, Ext)
	}
	return fmt.Sprintf("result_%d%s", c.ID, Ext)
}

// Encode renders a container to its TOML document form.
func Encode(c *entity.Container) ([]byte, error) {
	tree := map[string]any{
		"entity-type": string(c.Type),
		"entity-id":   c.ID,
		"entity-name": c.Name,
	}
	if c.Product != nil {
		tree["product"] = sanitize(c.Product)
	}

	md := map[string]any{}
	for _, mdType := range tcms.MasterDataTypes() {
		objs, err := c.MasterData.ObjectsOfType(mdType)
		if err != nil {
			return nil, err
		}
		if len(objs) == 0 {
			continue
		}
		list := make([]map[string]any, 0, len(objs))
		for _, id := range c.MasterData.SortedIDs(mdType) {
			list = append(list, sanitize(objs[id]))
		}
		md[mdType] = list
	}
	if len(md) > 0 {
		tree["master-data"] = md
	}

	for _, g := range c.Groups() {
		objs := c.Objects(g)
		if len(objs) == 0 {
			continue
		}
		list := make([]map[string]any, 0, len(objs))
		for _, id := range c.SortedIDs(g) {
			list = append(list, sanitize(objs[id]))
		}
		tree[string(g)] = list
	}

	data, err := toml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s document: %w", c.Type, err)
	}
	return data, nil
}

// Save writes the container's document to path, creating parent directories
// as needed. The file is written in one step after encoding succeeds; a
// failed encode leaves no partial file behind.
func Save(path string, c *entity.Container) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// sanitize copies an object for serialization, dropping nil-valued
// attributes: they are omitted from the document, not written as null.
func sanitize(obj tcms.Object) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}
