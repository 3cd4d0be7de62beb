package sarif

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/scan-io-git/secret-hook/internal/findings"
	"github.com/scan-io-git/secret-hook/internal/signature"
)

const (
	ToolName           = "secrethook"
	ToolInformationURI = "https://github.com/scan-io-git/secret-hook"

	levelError = "error"
)

var nonIDChars = regexp.MustCompile(`[^a-z0-9]+`)

// Report is a SARIF report of one scan.
type Report struct {
	*sarif.Report
}

// RuleID turns a signature name into a stable SARIF rule identifier.
func RuleID(name string) string {
	id := strings.Trim(nonIDChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if id == "" {
		return "unnamed-signature"
	}
	return id
}

// NewReport builds a report with one rule per signature and one result per
// finding. Findings of signatures missing from sigs still get a rule.
func NewReport(list []findings.Finding, sigs []*signature.Signature, version string) (*Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(ToolName, ToolInformationURI)
	if version != "" {
		run.Tool.Driver.Version = &version
	}

	ids := newRuleIDs()
	for _, sig := range sigs {
		props := sarif.Properties{
			"part": string(sig.Part()),
			"kind": sig.Kind().String(),
		}
		switch sig.Kind() {
		case signature.KindSimple:
			props["match"] = sig.Literal()
		case signature.KindPattern:
			props["regex"] = sig.Pattern()
		}
		addRule(run, ids, sig.Name()).WithProperties(props)
	}

	for _, f := range list {
		rule := addRule(run, ids, f.SignatureName)

		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(f.FilePath)),
		)
		result := sarif.NewRuleResult(rule.ID).
			WithMessage(sarif.NewTextMessage(message(f))).
			WithLevel(levelError).
			WithLocations([]*sarif.Location{location})
		result.Properties = sarif.Properties{"matches": f.Matches}
		run.AddResult(result)
	}

	report.AddRun(run)
	return &Report{Report: report}, nil
}

// ruleIDs hands out one rule ID per signature name. Names that slug to an
// ID already taken by another name get a numeric suffix.
type ruleIDs struct {
	byName map[string]string
	taken  map[string]struct{}
}

func newRuleIDs() *ruleIDs {
	return &ruleIDs{byName: map[string]string{}, taken: map[string]struct{}{}}
}

func (r *ruleIDs) get(name string) string {
	if id, ok := r.byName[name]; ok {
		return id
	}

	base := RuleID(name)
	id := base
	for n := 2; ; n++ {
		if _, ok := r.taken[id]; !ok {
			break
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
	r.byName[name] = id
	r.taken[id] = struct{}{}
	return id
}

func addRule(run *sarif.Run, ids *ruleIDs, name string) *sarif.ReportingDescriptor {
	return run.AddRule(ids.get(name)).
		WithDescription(name).
		WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: levelError})
}

func message(f findings.Finding) string {
	if f.Matches > 1 {
		return fmt.Sprintf("%s: %d matches in added line", f.SignatureName, f.Matches)
	}
	return fmt.Sprintf("%s in %s", f.SignatureName, f.FilePath)
}

// Write prints the report as indented JSON.
func (r *Report) Write(w io.Writer) error {
	return r.PrettyWrite(w)
}
