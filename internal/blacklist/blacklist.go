package blacklist

import (
	"errors"
	"fmt"
	"regexp"
)

// Kind names what a blacklist item inspects.
type Kind string

const (
	KindExtension Kind = "extension"
	KindPath      Kind = "path"
)

// ErrInvalidItem is returned when a blacklist entry is empty.
var ErrInvalidItem = errors.New("invalid blacklist item in config")

// Item exempts a file from scanning, either by its extension or by a path
// segment. Items are immutable once built and safe for concurrent use.
type Item struct {
	kind      Kind
	text      string
	extension string
	segment   *regexp.Regexp
}

// NewExtension builds an item matching files whose extension equals ext.
// Extensions are compared without a leading dot.
func NewExtension(ext string) (Item, error) {
	if ext == "" {
		return Item{}, fmt.Errorf("%w: empty extension", ErrInvalidItem)
	}
	return Item{kind: KindExtension, text: ext, extension: ext}, nil
}

// NewPath builds an item matching paths that contain segment as a component
// enclosed by '/' on both sides. The segment is used as a regular expression
// fragment, so a leading or trailing component never matches.
func NewPath(segment string) (Item, error) {
	if segment == "" {
		return Item{}, fmt.Errorf("%w: empty path segment", ErrInvalidItem)
	}

	compiled, err := regexp.Compile(fmt.Sprintf("^.*?(/%s/).*?$", segment))
	if err != nil {
		return Item{}, fmt.Errorf("path segment %q is not a valid pattern: %w", segment, err)
	}
	return Item{kind: KindPath, text: segment, segment: compiled}, nil
}

// Kind returns the item kind.
func (i Item) Kind() Kind { return i.kind }

// String returns the configured extension or path segment.
func (i Item) String() string { return i.text }

// Matches reports whether the file identified by path and extension is
// exempt from scanning.
func (i Item) Matches(path, extension string) bool {
	switch i.kind {
	case KindExtension:
		return i.extension == extension
	case KindPath:
		return i.segment.MatchString(path)
	default:
		return false
	}
}

// AnyMatches reports whether at least one item matches the file.
func AnyMatches(items []Item, path, extension string) bool {
	for _, item := range items {
		if item.Matches(path, extension) {
			return true
		}
	}
	return false
}
