package evaluator

import (
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/secret-hook/internal/blacklist"
	"github.com/scan-io-git/secret-hook/internal/findings"
	"github.com/scan-io-git/secret-hook/internal/session"
	"github.com/scan-io-git/secret-hook/internal/signature"
)

// additionMarker prefixes lines introduced by a diff.
const additionMarker = "+"

// FileChange is the part of a changed file the evaluator needs.
type FileChange struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	Diff        string `json:"diff"`
	NewFile     bool   `json:"new_file"`
	RenamedFile bool   `json:"renamed_file"`
	DeletedFile bool   `json:"deleted_file"`
}

// Evaluator decides which signatures fire for a changed file. It holds no
// mutable state, so one Evaluator may be shared by concurrent workers.
type Evaluator struct {
	session *session.Session
	logger  hclog.Logger
}

// New creates an Evaluator bound to a session.
func New(sess *session.Session, logger hclog.Logger) *Evaluator {
	if sess == nil {
		sess = session.Empty()
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Evaluator{session: sess, logger: logger}
}

// EvaluateChange evaluates one changed file, deriving its filename and
// extension from the new path.
func (e *Evaluator) EvaluateChange(change FileChange) []findings.Finding {
	filename, extension := SplitFileName(change.NewPath)
	return e.Evaluate(change.NewPath, filename, extension, change.Diff)
}

// Evaluate returns the findings for a file. Blacklisted files yield no
// findings. Content signatures run against each added line on its own and
// emit one finding per matching line; every other signature runs once per
// file and emits at most one finding.
func (e *Evaluator) Evaluate(filePath, fileName, extension, diffText string) []findings.Finding {
	if blacklist.AnyMatches(e.session.Blacklists(), filePath, extension) {
		e.logger.Debug("file is blacklisted, skipping", "path", filePath)
		return nil
	}

	additions := ExtractAdditions(diffText)

	var hits []findings.Finding
	for _, sig := range e.session.Signatures() {
		if sig.Part() == signature.PartContents {
			for _, line := range additions {
				matches := sig.ContentMatches(line)
				if len(matches) == 0 {
					continue
				}
				hits = append(hits, findings.Finding{
					Matches:       len(matches),
					SignatureName: sig.Name(),
					FilePath:      filePath,
				})
			}
			continue
		}

		if matched, part := sig.Match(filePath, fileName, extension, diffText); matched {
			e.logger.Debug("signature matched", "signature", sig.Name(), "part", part, "path", filePath)
			hits = append(hits, findings.Finding{
				Matches:       1,
				SignatureName: sig.Name(),
				FilePath:      filePath,
			})
		}
	}

	return hits
}

// ExtractAdditions returns the lines of a diff that start with the addition
// marker and carry content beyond it, in their original order. The marker is
// kept on every returned line.
func ExtractAdditions(diffText string) []string {
	var additions []string
	for _, line := range strings.Split(diffText, "\n") {
		if strings.HasPrefix(line, additionMarker) && len(line) > len(additionMarker) {
			additions = append(additions, line)
		}
	}
	return additions
}

// SplitFileName returns the last '/' separated component of path and its
// extension without the dot. Leading dots of the filename never start an
// extension, so ".htpasswd" has none and "a.tar.gz" has "gz".
func SplitFileName(path string) (filename, extension string) {
	filename = path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		filename = path[idx+1:]
	}

	stem := strings.TrimLeft(filename, ".")
	if idx := strings.LastIndex(stem, "."); idx >= 0 {
		extension = stem[idx+1:]
	}
	return filename, extension
}
