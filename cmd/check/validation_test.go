package check

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCheckArgs(t *testing.T) {
	repoDir := t.TempDir()

	testCases := []struct {
		name     string
		opts     RunOptionsCheck
		args     []string
		wantMode checkMode
		wantErr  bool
	}{
		{name: "diff file", opts: RunOptionsCheck{DiffFile: "testdata/safe.patch"}, wantMode: modeDiffFile},
		{name: "stdin", opts: RunOptionsCheck{DiffFile: "-", Format: formatSARIF}, wantMode: modeDiffFile},
		{name: "repository", opts: RunOptionsCheck{Repo: repoDir, Base: "main", Head: "HEAD"}, wantMode: modeRepository},
		{name: "project", opts: RunOptionsCheck{Project: 7, Commit: "abc", ReportStatus: true}, wantMode: modeProject},
		{name: "nothing", opts: RunOptionsCheck{}, wantErr: true},
		{name: "positional args", opts: RunOptionsCheck{DiffFile: "-"}, args: []string{"extra"}, wantErr: true},
		{name: "two sources", opts: RunOptionsCheck{DiffFile: "-", Repo: repoDir, Base: "a", Head: "b"}, wantErr: true},
		{name: "missing diff file", opts: RunOptionsCheck{DiffFile: "testdata/none.patch"}, wantErr: true},
		{name: "repository without head", opts: RunOptionsCheck{Repo: repoDir, Base: "main"}, wantErr: true},
		{name: "project without commit", opts: RunOptionsCheck{Project: 7}, wantErr: true},
		{name: "commit without project", opts: RunOptionsCheck{Commit: "abc"}, wantErr: true},
		{name: "report status without project", opts: RunOptionsCheck{DiffFile: "-", ReportStatus: true}, wantErr: true},
		{name: "base without repo", opts: RunOptionsCheck{DiffFile: "-", Base: "main"}, wantErr: true},
		{name: "unknown format", opts: RunOptionsCheck{DiffFile: "-", Format: "xml"}, wantErr: true},
		{name: "too many workers", opts: RunOptionsCheck{DiffFile: "-", Workers: 100}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := tc.opts
			mode, err := validateCheckArgs(&opts, tc.args)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantMode, mode)
			assert.NotEmpty(t, opts.Format)
		})
	}
}
