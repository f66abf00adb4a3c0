package document

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/FrankSommer-64/issai-sub000/internal/entity"
	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
)

// Load reads and validates an entity document. On success the container is
// returned together with the report, which may still carry
// unsupported-attribute warnings. When the document has fatal issues the
// container is nil and the error aggregates every issue found, not just the
// first.
func Load(path string) (*entity.Container, *Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	c, report, err := Decode(data)
	if err != nil {
		return nil, report, fmt.Errorf("%s: %w", path, err)
	}
	return c, report, nil
}

// Decode parses and validates a document from memory.
func Decode(data []byte) (*entity.Container, *Report, error) {
	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, nil, fmt.Errorf("parsing document: %w", err)
	}

	report := &Report{}
	c := build(tree, report)
	if err := report.Err(); err != nil {
		return nil, report, err
	}
	return c, report, nil
}

// knownTopLevel lists the fixed top-level keys of every document.
var knownTopLevel = map[string]bool{
	"entity-type": true,
	"entity-id":   true,
	"entity-name": true,
	"product":     true,
	"master-data": true,
}

func build(tree map[string]any, report *Report) *entity.Container {
	entityType := requireString(tree, "entity-type", report)
	entityID, idOK := requireInt(tree, "entity-id", report)
	entityName := requireString(tree, "entity-name", report)

	var cType entity.Type
	if entityType != "" {
		for _, t := range entity.Types() {
			if string(t) == entityType {
				cType = t
				break
			}
		}
		if cType == "" {
			report.add(KindInvalidValue, "entity-type", fmt.Sprintf("unsupported entity type %q", entityType))
		}
	}
	if cType == "" || !idOK {
		return nil
	}

	c := entity.New(cType, entityID, entityName)
	buildProduct(tree, c, report)
	buildMasterData(tree, c, report)
	buildGroups(tree, c, report)
	if cType == entity.TypePlanResult {
		checkResultConsistency(c, report)
	}
	return c
}

func requireString(tree map[string]any, key string, report *Report) string {
	v, ok := tree[key]
	if !ok {
		report.add(KindMissing, key, "")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		report.add(KindInvalidType, key, fmt.Sprintf("expected string, got %T", v))
		return ""
	}
	return s
}

func requireInt(tree map[string]any, key string, report *Report) (int64, bool) {
	v, ok := tree[key]
	if !ok {
		report.add(KindMissing, key, "")
		return 0, false
	}
	n, ok := tcms.AsID(v)
	if !ok {
		report.add(KindInvalidType, key, fmt.Sprintf("expected integer, got %T", v))
		return 0, false
	}
	return n, true
}

func buildProduct(tree map[string]any, c *entity.Container, report *Report) {
	v, ok := tree["product"]
	if !ok {
		// Result containers may omit the product.
		if c.Type != entity.TypePlanResult {
			report.add(KindMissing, "product", "")
		}
		return
	}
	switch p := v.(type) {
	case map[string]any:
		c.Product = tcms.Object(p)
	case []any:
		if len(p) > 1 {
			report.add(KindMultiple, "product", fmt.Sprintf("%d products declared, at most one allowed", len(p)))
			return
		}
		if len(p) == 1 {
			if obj, ok := p[0].(map[string]any); ok {
				c.Product = tcms.Object(obj)
				return
			}
		}
		report.add(KindInvalidType, "product", "expected table")
	default:
		report.add(KindInvalidType, "product", fmt.Sprintf("expected table, got %T", v))
	}
}

func buildMasterData(tree map[string]any, c *entity.Container, report *Report) {
	v, ok := tree["master-data"]
	if !ok {
		return
	}
	md, ok := v.(map[string]any)
	if !ok {
		report.add(KindInvalidType, "master-data", fmt.Sprintf("expected table, got %T", v))
		return
	}
	for mdType, raw := range md {
		if _, known := tcms.ClassForMasterDataType(mdType); !known {
			report.add(KindUnsupported, "master-data."+mdType, "unknown master data type")
			continue
		}
		objs, ok := decodeObjectList(raw, "master-data."+mdType, report)
		if !ok {
			continue
		}
		for _, obj := range objs {
			if err := c.MasterData.AddObject(mdType, obj); err != nil {
				report.add(KindInvalidValue, "master-data."+mdType, err.Error())
			}
		}
	}
}

func buildGroups(tree map[string]any, c *entity.Container, report *Report) {
	valid := make(map[string]entity.Group)
	for _, g := range c.Groups() {
		valid[string(g)] = g
	}
	for key, raw := range tree {
		if knownTopLevel[key] {
			continue
		}
		g, ok := valid[key]
		if !ok {
			if isGroupName(key) {
				report.add(KindInvalidValue, key, fmt.Sprintf("group not applicable to %s entity", c.Type))
			} else {
				report.add(KindUnsupported, key, "unknown attribute")
			}
			continue
		}
		objs, ok := decodeObjectList(raw, key, report)
		if !ok {
			continue
		}
		seen := make(map[int64]bool, len(objs))
		for _, obj := range objs {
			id := tcms.ObjectID(obj)
			if seen[id] {
				report.add(KindMultiple, key, fmt.Sprintf("duplicate object id %d", id))
				continue
			}
			seen[id] = true
			if err := c.Add(g, obj); err != nil {
				report.add(KindInvalidValue, key, err.Error())
			}
		}
	}
}

func isGroupName(key string) bool {
	switch entity.Group(key) {
	case entity.GroupEnvironments, entity.GroupTestPlans, entity.GroupTestRuns,
		entity.GroupTestCases, entity.GroupTestExecutions,
		entity.GroupCaseResults, entity.GroupPlanResults:
		return true
	}
	return false
}

func decodeObjectList(raw any, path string, report *Report) ([]tcms.Object, bool) {
	list, ok := raw.([]any)
	if !ok {
		report.add(KindInvalidType, path, fmt.Sprintf("expected array of tables, got %T", raw))
		return nil, false
	}
	objs := make([]tcms.Object, 0, len(list))
	for i, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			report.add(KindInvalidType, fmt.Sprintf("%s[%d]", path, i), "expected table")
			continue
		}
		obj := tcms.Object(m)
		if _, ok := tcms.AsID(obj["id"]); !ok {
			report.add(KindMissing, fmt.Sprintf("%s[%d].id", path, i), "object id absent or not an integer")
			continue
		}
		objs = append(objs, obj)
	}
	return objs, true
}

// checkResultConsistency verifies the cross-field law of result documents:
// the header's id and name must agree with the root plan result's plan id
// and recorded plan name.
func checkResultConsistency(c *entity.Container, report *Report) {
	results := c.Objects(entity.GroupPlanResults)
	if len(results) == 0 {
		report.add(KindMissing, string(entity.GroupPlanResults), "result document has no plan result")
		return
	}
	var root tcms.Object
	for _, obj := range results {
		if planID, ok := tcms.AsID(obj[entity.AttrPlan]); ok && planID == c.ID {
			root = obj
			break
		}
	}
	if root == nil {
		report.add(KindMismatch, string(entity.GroupPlanResults),
			fmt.Sprintf("no plan result references header entity-id %d", c.ID))
		return
	}
	if name := tcms.AsString(root[entity.AttrPlanName]); name != c.Name {
		report.add(KindMismatch, string(entity.GroupPlanResults)+"."+entity.AttrPlanName,
			fmt.Sprintf("header entity-name %q but plan result records %q", c.Name, name))
	}
}
