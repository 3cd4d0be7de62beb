package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/secret-hook/internal/evaluator"
	"github.com/scan-io-git/secret-hook/internal/findings"
	"github.com/scan-io-git/secret-hook/internal/session"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 4

// ErrScanFailed marks a batch that could not be evaluated completely.
var ErrScanFailed = errors.New("scan failed")

// Scanner fans file evaluations out over a fixed-size pool of goroutines.
type Scanner struct {
	workers int          // Maximum number of files evaluated concurrently
	logger  hclog.Logger // Logger for logging messages and errors

	// evaluate overrides the per-file evaluation, used by tests.
	evaluate func(*evaluator.Evaluator, evaluator.FileChange) []findings.Finding
}

// Result is the aggregated outcome of one batch. When Failed is set the
// findings are empty and the batch must be reported as unsafe.
type Result struct {
	Failed   bool
	Err      error
	Findings []findings.Finding
	Files    int // Number of files submitted to the evaluator
}

// Safe reports whether the batch completed without findings.
func (r Result) Safe() bool {
	return !r.Failed && len(r.Findings) == 0
}

// New creates a Scanner. Non-positive worker counts fall back to DefaultWorkers.
func New(workers int, logger hclog.Logger) *Scanner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Scanner{workers: workers, logger: logger}
}

// Workers returns the pool size.
func (s *Scanner) Workers() int {
	return s.workers
}

// WithLogger returns a copy of the scanner that logs through logger.
func (s *Scanner) WithLogger(logger hclog.Logger) *Scanner {
	if logger == nil {
		return s
	}
	c := *s
	c.logger = logger
	return &c
}

// Scan evaluates every non-deleted change against sess. Any failure while
// evaluating, including a panic in a worker or a cancelled context, turns
// the whole batch into a failure with no findings.
func (s *Scanner) Scan(ctx context.Context, sess *session.Session, namespace string, changes []evaluator.FileChange) Result {
	s.logger.Info("processing diffs", "namespace", namespace, "received", len(changes))

	pending := make([]evaluator.FileChange, 0, len(changes))
	for _, change := range changes {
		if change.DeletedFile {
			continue
		}
		pending = append(pending, change)
	}

	eval := evaluator.New(sess, s.logger)
	evaluate := (*evaluator.Evaluator).EvaluateChange
	if s.evaluate != nil {
		evaluate = s.evaluate
	}
	perFile := make([][]findings.Finding, len(pending))
	errs := make([]error, len(pending))

	forEachBounded(s.workers, len(pending), func(i int) {
		defer func() {
			if r := recover(); r != nil {
				errs[i] = fmt.Errorf("evaluating %q panicked: %v", pending[i].NewPath, r)
			}
		}()

		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}

		s.logger.Debug("processing change in file", "path", pending[i].NewPath)
		perFile[i] = evaluate(eval, pending[i])
	})

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("failed processing repository", "namespace", namespace, "error", err)
		return Result{Failed: true, Err: fmt.Errorf("%w: %w", ErrScanFailed, err), Files: len(pending)}
	}

	var all []findings.Finding
	for _, hits := range perFile {
		all = append(all, hits...)
	}

	s.logger.Info("diffs processed", "namespace", namespace, "files", len(pending), "findings", len(all))
	return Result{Findings: all, Files: len(pending)}
}

// forEachBounded calls f for every index in [0, n) with at most limit calls
// running at once, and waits for all of them.
func forEachBounded(limit, n int, f func(i int)) {
	guard := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		guard <- struct{}{} // would block if guard channel is already filled
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-guard }()
			f(i)
		}(i)
	}
	wg.Wait()
}
