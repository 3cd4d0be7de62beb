package session

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	yaml "gopkg.in/yaml.v2"

	"github.com/scan-io-git/secret-hook/internal/blacklist"
	"github.com/scan-io-git/secret-hook/internal/signature"
)

// SignatureEntry is one raw entry of the signatures section. Values are kept
// as decoded so a single malformed entry can be reported verbatim.
type SignatureEntry map[string]interface{}

// Blacklists holds the raw blacklists section.
type Blacklists struct {
	Extensions []string `yaml:"extensions"`
	Paths      []string `yaml:"paths"`
}

// Config is the parsed ruleset document.
type Config struct {
	Signatures []SignatureEntry `yaml:"signatures"`
	Blacklists Blacklists       `yaml:"blacklists"`
}

// Session is the immutable set of signatures and blacklist items used for
// one scan. Evaluation order is the configuration order.
type Session struct {
	signatures []*signature.Signature
	blacklists []blacklist.Item
}

// Parse decodes a YAML ruleset and loads it. Only a document that is not
// valid YAML is an error. Entries of the wrong shape are dropped by the
// decoder and logged, the rest of the ruleset still loads.
func Parse(data []byte, logger hclog.Logger) (*Session, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		var typeErr *yaml.TypeError
		if !errors.As(err, &typeErr) {
			return nil, fmt.Errorf("failed to parse ruleset: %w", err)
		}
		logger.Error("ruleset contains malformed entries", "errors", typeErr.Errors)
	}
	return Load(cfg, logger), nil
}

// Load builds a Session from a parsed ruleset. Entries that fail to build
// are logged at error level with their raw values and excluded.
func Load(cfg Config, logger hclog.Logger) *Session {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	s := &Session{
		signatures: make([]*signature.Signature, 0, len(cfg.Signatures)),
		blacklists: make([]blacklist.Item, 0, len(cfg.Blacklists.Extensions)+len(cfg.Blacklists.Paths)),
	}

	for _, entry := range cfg.Signatures {
		sig, err := buildSignature(entry)
		if err != nil {
			logger.Error("failed loading signature", "entry", map[string]interface{}(entry), "error", err)
			continue
		}
		s.signatures = append(s.signatures, sig)
	}

	for _, ext := range cfg.Blacklists.Extensions {
		item, err := blacklist.NewExtension(ext)
		if err != nil {
			logger.Error("failed loading blacklist item", "kind", blacklist.KindExtension, "entry", ext, "error", err)
			continue
		}
		s.blacklists = append(s.blacklists, item)
	}

	for _, segment := range cfg.Blacklists.Paths {
		item, err := blacklist.NewPath(segment)
		if err != nil {
			logger.Error("failed loading blacklist item", "kind", blacklist.KindPath, "entry", segment, "error", err)
			continue
		}
		s.blacklists = append(s.blacklists, item)
	}

	logger.Debug("ruleset loaded", "signatures", len(s.signatures), "blacklists", len(s.blacklists))
	return s
}

// Empty returns a session without signatures or blacklist items.
func Empty() *Session {
	return &Session{}
}

// Signatures returns the signatures in evaluation order.
func (s *Session) Signatures() []*signature.Signature {
	return append([]*signature.Signature(nil), s.signatures...)
}

// Blacklists returns the blacklist items.
func (s *Session) Blacklists() []blacklist.Item {
	return append([]blacklist.Item(nil), s.blacklists...)
}

// buildSignature picks the signature variant: a non-empty match makes a
// simple signature, anything else a pattern signature built from regex.
func buildSignature(entry SignatureEntry) (*signature.Signature, error) {
	name, err := entry.field("name")
	if err != nil {
		return nil, err
	}
	part, err := entry.field("part")
	if err != nil {
		return nil, err
	}
	match, err := entry.field("match")
	if err != nil {
		return nil, err
	}

	if match != "" {
		return signature.NewSimple(name, part, match)
	}

	regex, err := entry.field("regex")
	if err != nil {
		return nil, err
	}
	return signature.NewPattern(name, part, regex)
}

// field returns a scalar entry value as a string. Missing keys yield "".
func (e SignatureEntry) field(key string) (string, error) {
	value, ok := e[key]
	if !ok || value == nil {
		return "", nil
	}

	switch v := value.(type) {
	case string:
		return v, nil
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("field %q must be a scalar, got %T", key, value)
	}
}
