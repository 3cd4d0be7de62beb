package signature

import (
	"errors"
	"fmt"
	"regexp"
)

// Part names the aspect of a changed file a signature inspects.
type Part string

const (
	PartPath      Part = "path"
	PartFilename  Part = "filename"
	PartExtension Part = "extension"
	PartContents  Part = "contents"
)

// Kind distinguishes exact-match signatures from regular expression ones.
type Kind int

const (
	KindSimple Kind = iota
	KindPattern
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindPattern:
		return "pattern"
	default:
		return "unknown"
	}
}

// ErrInvalidSignature is returned when a signature is missing a required field.
var ErrInvalidSignature = errors.New("invalid signature in config")

// Signature is a named rule matching one part of a changed file, either by
// exact string comparison or by an unanchored regular expression search.
// Signatures are immutable once built and safe for concurrent use.
type Signature struct {
	name    string
	part    Part
	kind    Kind
	literal string
	pattern *regexp.Regexp
}

// NewSimple builds an exact-match signature.
func NewSimple(name, part, match string) (*Signature, error) {
	if err := validateHeader(name, part); err != nil {
		return nil, err
	}
	if match == "" {
		return nil, fmt.Errorf("%w: signature %q has an empty match", ErrInvalidSignature, name)
	}

	return &Signature{
		name:    name,
		part:    Part(part),
		kind:    KindSimple,
		literal: match,
	}, nil
}

// NewPattern builds a regular expression signature. The pattern is compiled
// with RE2 syntax; a compile failure is returned to the caller.
func NewPattern(name, part, regex string) (*Signature, error) {
	if err := validateHeader(name, part); err != nil {
		return nil, err
	}
	if regex == "" {
		return nil, fmt.Errorf("%w: signature %q has an empty regex", ErrInvalidSignature, name)
	}

	compiled, err := regexp.Compile(regex)
	if err != nil {
		return nil, fmt.Errorf("signature %q has an invalid regex: %w", name, err)
	}

	return &Signature{
		name:    name,
		part:    Part(part),
		kind:    KindPattern,
		pattern: compiled,
	}, nil
}

func validateHeader(name, part string) error {
	if name == "" || part == "" {
		return fmt.Errorf("%w: name and part are required", ErrInvalidSignature)
	}
	return nil
}

// Name returns the signature identifier.
func (s *Signature) Name() string { return s.name }

// Part returns the inspected part. It may hold a value unknown to this
// version, in which case the signature never matches.
func (s *Signature) Part() Part { return s.part }

// Kind reports whether this is a simple or a pattern signature.
func (s *Signature) Kind() Kind { return s.kind }

// Literal returns the exact-match string of a simple signature.
func (s *Signature) Literal() string { return s.literal }

// Pattern returns the source of the regular expression of a pattern signature.
func (s *Signature) Pattern() string {
	if s.pattern == nil {
		return ""
	}
	return s.pattern.String()
}

// Match evaluates the signature against the part it inspects and returns
// whether it matched together with the part that was compared. Unknown parts,
// and contents for simple signatures, yield (false, "").
func (s *Signature) Match(path, filename, extension, content string) (bool, Part) {
	var haystack string

	switch s.part {
	case PartPath:
		haystack = path
	case PartFilename:
		haystack = filename
	case PartExtension:
		haystack = extension
	case PartContents:
		if s.kind != KindPattern {
			return false, ""
		}
		haystack = content
	default:
		return false, ""
	}

	if s.kind == KindPattern {
		return s.pattern.MatchString(haystack), s.part
	}
	return s.literal == haystack, s.part
}

// ContentMatches returns every non-overlapping match of the signature in
// content, left to right. Only pattern signatures on contents enumerate
// matches; every other signature returns nil.
func (s *Signature) ContentMatches(content string) []string {
	if s.part != PartContents || s.kind != KindPattern {
		return nil
	}
	return s.pattern.FindAllString(content, -1)
}
