package diffstate

import (
	"reflect"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffTag labels a record's status in a merged diff view. Unchanged
// records carry an empty tag.
type DiffTag string

const (
	TagUnchanged DiffTag = ""
	TagAdded     DiffTag = "added"
	TagChanged   DiffTag = "changed"
	TagRemoved   DiffTag = "removed"
)

// FieldDiff describes one changed field within a changed record.
type FieldDiff struct {
	Field    string
	Old      any
	New      any
	TextDiff string // pretty text diff for string-valued changes
}

// RecordDiff is one entry of a merged diff view.
type RecordDiff struct {
	Tag    DiffTag
	Record map[string]any
	Fields []FieldDiff
}

// DiffRecords merges two record slices into a single tagged view. Records
// are matched by equality of their idField value, never by position.
// Records only in the new slice are tagged added; matched records with
// unequal values (compared under path when given, whole record otherwise)
// are tagged changed and carry the new record; records only in the old
// slice are retained, tagged removed, after the matched records in their
// original order.
func DiffRecords(oldRecords, newRecords []map[string]any, idField, path string) []RecordDiff {
	oldByID := make(map[any]map[string]any, len(oldRecords))
	for _, rec := range oldRecords {
		if id, ok := rec[idField]; ok {
			oldByID[id] = rec
		}
	}

	matched := make(map[any]bool, len(newRecords))
	merged := make([]RecordDiff, 0, len(oldRecords)+len(newRecords))

	for _, rec := range newRecords {
		id, ok := rec[idField]
		if !ok {
			merged = append(merged, RecordDiff{Tag: TagAdded, Record: rec})
			continue
		}
		oldRec, ok := oldByID[id]
		if !ok {
			merged = append(merged, RecordDiff{Tag: TagAdded, Record: rec})
			continue
		}
		matched[id] = true

		oldSide := valueAtPath(oldRec, path)
		newSide := valueAtPath(rec, path)
		if reflect.DeepEqual(oldSide, newSide) {
			merged = append(merged, RecordDiff{Tag: TagUnchanged, Record: rec})
			continue
		}
		merged = append(merged, RecordDiff{
			Tag:    TagChanged,
			Record: rec,
			Fields: fieldDiffs(oldSide, newSide, path),
		})
	}

	// Removed records are retained so a renderer can show removal
	// affordances.
	for _, rec := range oldRecords {
		id, ok := rec[idField]
		if ok && matched[id] {
			continue
		}
		merged = append(merged, RecordDiff{Tag: TagRemoved, Record: rec})
	}

	return merged
}

// valueAtPath walks a dotted path of map keys. An empty path returns the
// record itself.
func valueAtPath(record map[string]any, path string) any {
	if path == "" {
		return record
	}
	var current any = record
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// fieldDiffs reports the differing fields between two compared values.
// Map values are compared key by key; scalar values produce a single
// entry named after the comparison path.
func fieldDiffs(oldSide, newSide any, path string) []FieldDiff {
	oldMap, oldOK := oldSide.(map[string]any)
	newMap, newOK := newSide.(map[string]any)
	if !oldOK || !newOK {
		return []FieldDiff{newFieldDiff(path, oldSide, newSide)}
	}

	keys := make(map[string]bool, len(oldMap)+len(newMap))
	for k := range oldMap {
		keys[k] = true
	}
	for k := range newMap {
		keys[k] = true
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	var diffs []FieldDiff
	for _, name := range names {
		oldVal := oldMap[name]
		newVal := newMap[name]
		if reflect.DeepEqual(oldVal, newVal) {
			continue
		}
		field := name
		if path != "" {
			field = path + "." + name
		}
		diffs = append(diffs, newFieldDiff(field, oldVal, newVal))
	}
	return diffs
}

func newFieldDiff(field string, oldVal, newVal any) FieldDiff {
	d := FieldDiff{Field: field, Old: oldVal, New: newVal}
	oldStr, oldOK := oldVal.(string)
	newStr, newOK := newVal.(string)
	if oldOK && newOK {
		d.TextDiff = textDiff(oldStr, newStr)
	}
	return d
}

// textDiff renders a character-level pretty diff between two strings.
func textDiff(oldStr, newStr string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldStr, newStr, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}

// MergedView computes the projection a HoldAccept key renders during an
// active diff: the structural merge of the baseline and post-change
// record slices. Returns false when the key is absent, not in diff mode,
// or does not hold record slices.
func (e *Engine) MergedView(key, idField, path string) ([]RecordDiff, bool) {
	state, ok := e.State(key)
	if !ok || !state.InDiffMode {
		return nil, false
	}
	oldRecords, ok := toRecords(state.Old)
	if !ok {
		return nil, false
	}
	newRecords, ok := toRecords(state.New)
	if !ok {
		return nil, false
	}
	return DiffRecords(oldRecords, newRecords, idField, path), true
}

// toRecords normalizes a stored value into a record slice. Both typed
// slices and decoded-JSON []any values are accepted.
func toRecords(value any) ([]map[string]any, bool) {
	switch v := value.(type) {
	case []map[string]any:
		return v, true
	case []any:
		records := make([]map[string]any, 0, len(v))
		for _, item := range v {
			rec, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			records = append(records, rec)
		}
		return records, true
	default:
		return nil, false
	}
}
