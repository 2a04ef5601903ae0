package model

import (
	"strconv"
	"strings"
)

// DefaultTaskPrefix is the conventional prefix of task ids ("task-12").
const DefaultTaskPrefix = "task"

// splitID separates an id into its alphabetic prefix and the remainder after
// the first "-". "task-3.1" → ("task", "3.1"); "12" → ("", "12").
func splitID(id string) (prefix, rest string) {
	id = strings.TrimSpace(id)
	i := strings.Index(id, "-")
	if i <= 0 {
		return "", id
	}
	return id[:i], id[i+1:]
}

// numericSegments parses "3.01.2" into [3 1 2]. ok is false when any
// segment is not a non-negative integer.
func numericSegments(s string) ([]int, bool) {
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func joinSegments(segs []int) string {
	parts := make([]string, len(segs))
	for i, n := range segs {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// CanonicalKey returns the comparison key for an id under the given task
// prefix (DefaultTaskPrefix when empty). Bare numbers and ids carrying the
// task prefix collapse to their normalized segments: "task-07", "TASK-7"
// and "7" all yield "7". Any other id keys as its lower-cased spelling, so
// "doc-1" never names task 1.
func CanonicalKey(id, prefix string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if segs, ok := numericSegments(id); ok {
		return joinSegments(segs)
	}
	if p, rest := splitID(id); p == normalizePrefix(prefix) {
		if segs, ok := numericSegments(rest); ok {
			return joinSegments(segs)
		}
	}
	return id
}

func normalizePrefix(prefix string) string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return DefaultTaskPrefix
	}
	return prefix
}

// orderKey is the prefix-agnostic key used for sorting only.
func orderKey(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if segs, ok := numericSegments(id); ok {
		return joinSegments(segs)
	}
	if _, rest := splitID(id); rest != "" {
		if segs, ok := numericSegments(rest); ok {
			return joinSegments(segs)
		}
	}
	return id
}

// IDVariants returns every equivalent spelling of a task id, lower-cased
// and de-duplicated: prefixed and bare forms, as written and with numeric
// segments normalized. IDVariants("task-012", "task") yields
// ["task-012", "012", "task-12", "12"].
func IDVariants(id, prefix string) []string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil
	}
	prefix = normalizePrefix(prefix)

	bare := id
	if p, rest := splitID(id); p != "" && rest != "" {
		if _, ok := numericSegments(rest); ok {
			prefix = p
			bare = rest
		}
	}

	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	segs, numeric := numericSegments(bare)
	if !numeric {
		add(id)
		return out
	}
	add(prefix + "-" + bare)
	add(bare)
	norm := joinSegments(segs)
	add(prefix + "-" + norm)
	add(norm)
	return out
}

// CompareIDs orders ids hierarchically: numeric segments compare as numbers
// so "task-2" < "task-10" and "task-3" < "task-3.1" < "task-3.2". Ids
// without numeric segments sort after numeric ones, lexically.
func CompareIDs(a, b string) int {
	ka, kb := orderKey(a), orderKey(b)
	sa, okA := numericSegments(ka)
	sb, okB := numericSegments(kb)
	switch {
	case okA && okB:
		for i := 0; i < len(sa) && i < len(sb); i++ {
			if sa[i] != sb[i] {
				if sa[i] < sb[i] {
					return -1
				}
				return 1
			}
		}
		if len(sa) != len(sb) {
			if len(sa) < len(sb) {
				return -1
			}
			return 1
		}
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	case okA:
		return -1
	case okB:
		return 1
	default:
		return strings.Compare(ka, kb)
	}
}

// SameID reports whether two ids are spellings of the same entity under the
// task prefix.
func SameID(a, b, prefix string) bool {
	return CanonicalKey(a, prefix) == CanonicalKey(b, prefix)
}
