// Package composer holds the output resource trees and places injection
// payloads into them without clobbering existing structure.
package composer

import (
	"fmt"
	"io"

	"sigs.k8s.io/yaml"
)

// EntryKind distinguishes resources that accept structural merges from opaque
// instances that must not be modified after registration.
type EntryKind string

const (
	KindMergeable EntryKind = "mergeable"
	KindInstance  EntryKind = "instance"
)

// ResourceEntry is one composed output resource.
type ResourceEntry struct {
	Config map[string]any
	Kind   EntryKind
}

// Composer accumulates resources for one build pass.
type Composer struct {
	entries   map[string]*ResourceEntry
	order     []string
	overrides map[string]map[string]any
}

// New creates an empty composer.
func New() *Composer {
	return &Composer{
		entries:   map[string]*ResourceEntry{},
		overrides: map[string]map[string]any{},
	}
}

// Add registers a resource under an id. Duplicate ids fail.
func (c *Composer) Add(id string, kind EntryKind, config map[string]any) error {
	if id == "" {
		return fmt.Errorf("resource id is required")
	}
	if _, ok := c.entries[id]; ok {
		return fmt.Errorf("resource %q is already registered", id)
	}
	if kind == "" {
		kind = KindMergeable
	}
	c.entries[id] = &ResourceEntry{Config: config, Kind: kind}
	c.order = append(c.order, id)
	return nil
}

// ResourceIDs returns registered ids in registration order.
func (c *Composer) ResourceIDs() []string {
	return append([]string(nil), c.order...)
}

// Inject structurally merges value into the resource at path. An absent value
// is set directly; two arrays concatenate; two objects deep-merge; anything
// else is a type mismatch and fails.
func (c *Composer) Inject(resourceID, path string, value any) error {
	entry, ok := c.entries[resourceID]
	if !ok {
		return fmt.Errorf("resource %q is not registered", resourceID)
	}
	if entry.Kind == KindInstance {
		return fmt.Errorf("resource %q is an opaque instance and cannot be injected into", resourceID)
	}
	segments, err := parsePath(path)
	if err != nil {
		return err
	}
	if entry.Config == nil {
		entry.Config = map[string]any{}
	}
	return injectAt(entry.Config, segments, path, value)
}

// injectAt walks the parent segments, creating intermediate maps as needed,
// and merges value at the final segment.
func injectAt(root map[string]any, segments []pathSegment, path string, value any) error {
	var current any = root
	for i := 0; i < len(segments)-1; i++ {
		seg := segments[i]
		next, err := step(current, seg, path, true)
		if err != nil {
			return err
		}
		current = next
	}
	last := segments[len(segments)-1]
	switch parent := current.(type) {
	case map[string]any:
		if last.isIndex {
			return fmt.Errorf("path %q indexes into an object at %q", path, last)
		}
		existing, ok := parent[last.key]
		if !ok || existing == nil {
			parent[last.key] = value
			return nil
		}
		merged, err := mergeValues(existing, value, path)
		if err != nil {
			return err
		}
		parent[last.key] = merged
		return nil
	case []any:
		if !last.isIndex {
			return fmt.Errorf("path %q uses key %q on an array", path, last.key)
		}
		if last.index >= len(parent) {
			return fmt.Errorf("path %q index %d is out of range (len %d)", path, last.index, len(parent))
		}
		existing := parent[last.index]
		if existing == nil {
			parent[last.index] = value
			return nil
		}
		merged, err := mergeValues(existing, value, path)
		if err != nil {
			return err
		}
		parent[last.index] = merged
		return nil
	default:
		return fmt.Errorf("path %q traverses a non-container value of type %T", path, current)
	}
}

// step descends one segment, creating intermediate maps when create is set.
// Array elements are never created implicitly.
func step(current any, seg pathSegment, path string, create bool) (any, error) {
	switch typed := current.(type) {
	case map[string]any:
		if seg.isIndex {
			return nil, fmt.Errorf("path %q indexes into an object at %q", path, seg)
		}
		next, ok := typed[seg.key]
		if !ok || next == nil {
			if !create {
				return nil, fmt.Errorf("path %q not found at %q", path, seg.key)
			}
			created := map[string]any{}
			typed[seg.key] = created
			return created, nil
		}
		return next, nil
	case []any:
		if !seg.isIndex {
			return nil, fmt.Errorf("path %q uses key %q on an array", path, seg.key)
		}
		if seg.index >= len(typed) {
			return nil, fmt.Errorf("path %q index %d is out of range (len %d)", path, seg.index, len(typed))
		}
		return typed[seg.index], nil
	default:
		return nil, fmt.Errorf("path %q traverses a non-container value of type %T", path, current)
	}
}

// mergeValues applies the structural merge rules for two values already
// present at a path.
func mergeValues(existing, incoming any, path string) (any, error) {
	existingArr, existingIsArr := existing.([]any)
	incomingArr, incomingIsArr := incoming.([]any)
	if existingIsArr && incomingIsArr {
		return append(existingArr, incomingArr...), nil
	}
	existingMap, existingIsMap := existing.(map[string]any)
	incomingMap, incomingIsMap := incoming.(map[string]any)
	if existingIsMap && incomingIsMap {
		return deepMergeMaps(existingMap, incomingMap), nil
	}
	return nil, fmt.Errorf("cannot merge value at %q: existing %v (%T) conflicts with new %v (%T)",
		path, existing, existing, incoming, incoming)
}

// deepMergeMaps merges incoming into a copy of existing. New scalar keys win;
// nested objects merge recursively; array pairs concatenate.
func deepMergeMaps(existing, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		current, ok := out[k]
		if !ok || current == nil {
			out[k] = v
			continue
		}
		currentMap, currentIsMap := current.(map[string]any)
		vMap, vIsMap := v.(map[string]any)
		if currentIsMap && vIsMap {
			out[k] = deepMergeMaps(currentMap, vMap)
			continue
		}
		currentArr, currentIsArr := current.([]any)
		vArr, vIsArr := v.([]any)
		if currentIsArr && vIsArr {
			out[k] = append(append([]any(nil), currentArr...), vArr...)
			continue
		}
		// Scalar (or mismatched container) replaced by the incoming value.
		out[k] = v
	}
	return out
}

// AddOverride stages a partial tree merged onto the resource at Build time.
func (c *Composer) AddOverride(resourceID string, tree map[string]any) error {
	if _, ok := c.entries[resourceID]; !ok {
		return fmt.Errorf("resource %q is not registered", resourceID)
	}
	existing, ok := c.overrides[resourceID]
	if !ok {
		c.overrides[resourceID] = tree
		return nil
	}
	c.overrides[resourceID] = deepMergeMaps(existing, tree)
	return nil
}

// Build finalizes every resource, deep-merging staged overrides so partial
// trees win without losing unspecified branches. Documents come back in
// registration order.
func (c *Composer) Build() ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(c.order))
	for _, id := range c.order {
		entry := c.entries[id]
		config := entry.Config
		if override, ok := c.overrides[id]; ok {
			if entry.Kind == KindInstance {
				return nil, fmt.Errorf("resource %q is an opaque instance and cannot be overridden", id)
			}
			config = deepMergeMaps(config, override)
		}
		out = append(out, config)
	}
	return out, nil
}

// Render writes documents as a YAML multi-document stream.
func Render(w io.Writer, docs []map[string]any) error {
	for i, doc := range docs {
		if i > 0 {
			if _, err := io.WriteString(w, "---\n"); err != nil {
				return err
			}
		}
		raw, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		if _, err := w.Write(raw); err != nil {
			return err
		}
	}
	return nil
}
