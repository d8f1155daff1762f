package composer

import (
	"fmt"
	"strconv"
	"strings"
)

// pathSegment addresses one step of a dotted/bracketed accessor path. Exactly
// one of key/index is active.
type pathSegment struct {
	key     string
	index   int
	isIndex bool
}

// parsePath splits an accessor string like
// "spec.template.spec.containers[0].env" into segments.
func parsePath(path string) ([]pathSegment, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	var segments []pathSegment
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, fmt.Errorf("path %q has an empty segment", path)
		}
		rest := part
		for {
			open := strings.IndexByte(rest, '[')
			if open == -1 {
				if strings.ContainsAny(rest, "]") {
					return nil, fmt.Errorf("path %q has an unmatched bracket in %q", path, part)
				}
				if rest != "" {
					segments = append(segments, pathSegment{key: rest})
				}
				break
			}
			if open > 0 {
				segments = append(segments, pathSegment{key: rest[:open]})
			}
			closing := strings.IndexByte(rest[open:], ']')
			if closing == -1 {
				return nil, fmt.Errorf("path %q has an unmatched bracket in %q", path, part)
			}
			closing += open
			idxText := rest[open+1 : closing]
			idx, err := strconv.Atoi(idxText)
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("path %q has an invalid index %q", path, idxText)
			}
			segments = append(segments, pathSegment{index: idx, isIndex: true})
			rest = rest[closing+1:]
			if rest == "" {
				break
			}
		}
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("path %q has no segments", path)
	}
	return segments, nil
}

func (s pathSegment) String() string {
	if s.isIndex {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return s.key
}
