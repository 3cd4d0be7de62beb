package check

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/scan-io-git/secret-hook/cmd/version"
	"github.com/scan-io-git/secret-hook/internal/findings"
	"github.com/scan-io-git/secret-hook/internal/sarif"
	"github.com/scan-io-git/secret-hook/internal/scanner"
	"github.com/scan-io-git/secret-hook/internal/session"
	"github.com/scan-io-git/secret-hook/pkg/shared/files"
)

// checkReport is the JSON shape of a check result.
type checkReport struct {
	Safe     bool               `json:"safe"`
	Files    int                `json:"files"`
	Matches  int                `json:"matches"`
	Findings []findings.Finding `json:"findings"`
	Error    string             `json:"error,omitempty"`
}

// writeResult renders res in the requested format to the output path, or to stdout.
func writeResult(opts *RunOptionsCheck, res scanner.Result, sess *session.Session, stdout io.Writer) error {
	var buf bytes.Buffer
	if err := render(&buf, opts.Format, res, sess); err != nil {
		return err
	}

	if opts.OutputPath == "" {
		_, err := stdout.Write(buf.Bytes())
		return err
	}

	fullPath, folder, err := files.DetermineFileFullPath(opts.OutputPath, "secrethook-report."+extension(opts.Format))
	if err != nil {
		return err
	}
	if err := files.CreateFolderIfNotExists(folder); err != nil {
		return err
	}
	return files.WriteFile(fullPath, buf.Bytes())
}

func extension(format string) string {
	switch format {
	case formatJSON:
		return "json"
	case formatSARIF:
		return "sarif"
	default:
		return "txt"
	}
}

func render(w io.Writer, format string, res scanner.Result, sess *session.Session) error {
	switch format {
	case formatJSON:
		report := checkReport{
			Safe:     res.Safe(),
			Files:    res.Files,
			Matches:  findings.TotalMatches(res.Findings),
			Findings: res.Findings,
		}
		if report.Findings == nil {
			report.Findings = []findings.Finding{}
		}
		if res.Err != nil {
			report.Error = res.Err.Error()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case formatSARIF:
		report, err := sarif.NewReport(res.Findings, sess.Signatures(), version.CoreVersion)
		if err != nil {
			return err
		}
		return report.Write(w)
	default:
		return renderText(w, res)
	}
}

func renderText(w io.Writer, res scanner.Result) error {
	switch {
	case res.Failed:
		_, err := fmt.Fprintf(w, "Scan failed: %v\n", res.Err)
		return err
	case len(res.Findings) == 0:
		_, err := fmt.Fprintf(w, "Scanned %d files: no secrets found in modified code.\n", res.Files)
		return err
	}

	if _, err := fmt.Fprintf(w, "Scanned %d files: %d potential secrets found.\n", res.Files, len(res.Findings)); err != nil {
		return err
	}
	for _, f := range res.Findings {
		line := fmt.Sprintf("  %s: %s", f.FilePath, f.SignatureName)
		if f.Matches > 1 {
			line += fmt.Sprintf(" (%d matches)", f.Matches)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
