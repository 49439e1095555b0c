package data

import (
	"slices"
	"strings"

	"github.com/mwantia/secstore/data/errors"
)

const (
	// PathDelimiter separates the segments of a path.
	PathDelimiter = "/"
	// RootPath is the normalized path of the storage root.
	RootPath = "/"
	// MaxPathLength is the maximum length of a normalized path in bytes.
	MaxPathLength = 256
)

// ValidatePath checks raw and returns its normalized form ("/a/b").
// A leading delimiter is optional and a single trailing delimiter is trimmed.
// "." segments are dropped and ".." removes the previous segment, but never
// past the root.
func ValidatePath(raw string) (string, error) {
	if len(raw) == 0 {
		return "", errors.InvalidPath(nil, raw)
	}

	if strings.ContainsRune(raw, 0) {
		return "", errors.InvalidPath(nil, raw)
	}

	trimmed := strings.TrimPrefix(raw, PathDelimiter)
	if trimmed == "" {
		return RootPath, nil
	}
	trimmed = strings.TrimSuffix(trimmed, PathDelimiter)

	segments := make([]string, 0, strings.Count(trimmed, PathDelimiter)+1)
	for _, segment := range strings.Split(trimmed, PathDelimiter) {
		switch segment {
		case "":
			// Catches doubled delimiters, including a leading "//"
			return "", errors.InvalidPath(nil, raw)
		case ".":
			continue
		case "..":
			if len(segments) == 0 {
				return "", errors.PathEscapesRoot(raw)
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, segment)
		}
	}

	path := PathDelimiter + strings.Join(segments, PathDelimiter)
	if len(path) > MaxPathLength {
		return "", errors.PathTooLong(raw, MaxPathLength)
	}

	return path, nil
}

// IsRoot reports whether path is the normalized root.
func IsRoot(path string) bool {
	return path == RootPath
}

// IsAncestorOf reports whether b is a or nested under a.
// Both paths must be normalized.
func IsAncestorOf(a, b string) bool {
	// Root matches everything
	if IsRoot(a) {
		return true
	}

	if a == b {
		return true
	}

	return strings.HasPrefix(b, a+PathDelimiter)
}

// JoinChild appends name as a direct child of parent.
func JoinChild(parent, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.Contains(name, PathDelimiter) {
		return "", errors.InvalidPath(nil, name)
	}

	if IsRoot(parent) {
		return parent + name, nil
	}

	path := parent + PathDelimiter + name
	if len(path) > MaxPathLength {
		return "", errors.PathTooLong(path, MaxPathLength)
	}

	return path, nil
}

// ParentPath returns the parent of a normalized path. The parent of the root
// is the root itself.
func ParentPath(path string) string {
	idx := strings.LastIndex(path, PathDelimiter)
	if idx <= 0 {
		return RootPath
	}

	return path[:idx]
}

// BaseName returns the last segment of a normalized path, or "" for the root.
func BaseName(path string) string {
	return path[strings.LastIndex(path, PathDelimiter)+1:]
}

// Segments splits a normalized path into its segments.
func Segments(path string) []string {
	if IsRoot(path) {
		return nil
	}

	return strings.Split(strings.TrimPrefix(path, PathDelimiter), PathDelimiter)
}

// Ancestors returns all proper ancestors of path below the root, outermost
// first. "/a/b/c" yields ["/a", "/a/b"].
func Ancestors(path string) []string {
	segments := Segments(path)
	if len(segments) < 2 {
		return nil
	}

	ancestors := make([]string, 0, len(segments)-1)
	current := ""
	for _, segment := range segments[:len(segments)-1] {
		current += PathDelimiter + segment
		ancestors = append(ancestors, current)
	}

	return ancestors
}

// RelativePath returns path relative to prefix without a leading delimiter.
// It returns "" when both are equal. Callers must ensure prefix is an
// ancestor of path.
func RelativePath(path, prefix string) string {
	if path == prefix {
		return ""
	}

	if IsRoot(prefix) {
		return strings.TrimPrefix(path, PathDelimiter)
	}

	return strings.TrimPrefix(path, prefix+PathDelimiter)
}

// Rebase moves path from below oldPrefix to below newPrefix.
func Rebase(path, oldPrefix, newPrefix string) string {
	rel := RelativePath(path, oldPrefix)
	if rel == "" {
		return newPrefix
	}

	if IsRoot(newPrefix) {
		return newPrefix + rel
	}

	return newPrefix + PathDelimiter + rel
}

// ChildPrefix returns the key prefix every descendant of path starts with.
func ChildPrefix(path string) string {
	if IsRoot(path) {
		return RootPath
	}

	return path + PathDelimiter
}

// ChildNames extracts the distinct direct child names of parent from a list
// of descendant keys. The result is sorted.
func ChildNames(parent string, keys []string) []string {
	prefix := ChildPrefix(parent)
	names := make([]string, 0)
	seen := make(map[string]struct{})

	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		rel := key[len(prefix):]
		if rel == "" {
			continue
		}

		if idx := strings.Index(rel, PathDelimiter); idx >= 0 {
			rel = rel[:idx]
		}

		if _, exists := seen[rel]; !exists {
			seen[rel] = struct{}{}
			names = append(names, rel)
		}
	}

	slices.Sort(names)
	return names
}
