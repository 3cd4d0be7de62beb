// Package webhook receives GitLab merge request events, scans the last
// commit of the merge request and reports the verdict as a commit status.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	gogitlab "github.com/xanzy/go-gitlab"

	"github.com/scan-io-git/secret-hook/internal/evaluator"
	"github.com/scan-io-git/secret-hook/internal/findings"
	"github.com/scan-io-git/secret-hook/internal/gitlab"
	"github.com/scan-io-git/secret-hook/internal/scanner"
	"github.com/scan-io-git/secret-hook/internal/session"
)

const (
	headerEvent = "X-Gitlab-Event"
	headerToken = "X-Gitlab-Token"

	eventMergeRequest = "merge_request"

	DescriptionPending = "Scanning modified code for secrets."
	DescriptionSuccess = "No secrets found in modified code."
	DescriptionError   = "Secret scan failed: could not determine safety."

	// GitLab rejects longer commit status descriptions.
	maxDescriptionLength = 255

	maxPayloadBytes     = 25 << 20
	failureStatusBudget = 10 * time.Second
)

var (
	ErrUnsupportedEvent = errors.New("unsupported event")
	ErrInvalidEvent     = errors.New("invalid merge request event")
)

// GitLabAPI is the part of the GitLab client the handler depends on.
type GitLabAPI interface {
	CommitDiff(ctx context.Context, projectID int, sha string) ([]evaluator.FileChange, error)
	SetCommitStatus(ctx context.Context, projectID int, sha string, state gitlab.State, description string) error
}

// SessionResolver returns the ruleset to use for a project.
type SessionResolver interface {
	ForProject(ctx context.Context, projectID int) (*session.Session, error)
}

// Options tune the handler.
type Options struct {
	Secret       string        // Expected X-Gitlab-Token value, empty disables the check
	EventTimeout time.Duration // Upper bound for processing one event, zero means no bound
}

// Handler serves the webhook endpoint.
type Handler struct {
	api      GitLabAPI
	resolver SessionResolver
	scanner  *scanner.Scanner
	opts     Options
	logger   hclog.Logger
}

// Outcome is the verdict reported for one event.
type Outcome struct {
	ScanID      string
	State       gitlab.State
	Description string
	Findings    []findings.Finding
}

// NewHandler creates a Handler.
func NewHandler(api GitLabAPI, resolver SessionResolver, sc *scanner.Scanner, opts Options, logger hclog.Logger) *Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if sc == nil {
		sc = scanner.New(scanner.DefaultWorkers, logger)
	}
	return &Handler{
		api:      api,
		resolver: resolver,
		scanner:  sc,
		opts:     opts,
		logger:   logger,
	}
}

// Routes returns the HTTP routes of the service.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", h.handleHook)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (h *Handler) handleHook(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(headerEvent) == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !h.authorized(r) {
		h.logger.Warn("rejected webhook with invalid token", "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	event, err := decodeEvent(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		h.logger.Debug("ignoring webhook", "event", r.Header.Get(headerEvent), "reason", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if h.opts.EventTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.EventTimeout)
		defer cancel()
	}

	if _, err := h.ProcessEvent(ctx, event); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.opts.Secret == "" {
		return true
	}
	token := r.Header.Get(headerToken)
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.opts.Secret)) == 1
}

// decodeEvent parses a merge request event. Events of any other kind, and
// merge request events missing the project or last commit, are rejected.
func decodeEvent(body io.Reader) (*gogitlab.MergeEvent, error) {
	event := &gogitlab.MergeEvent{}
	if err := json.NewDecoder(body).Decode(event); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	kind := event.EventType
	if kind == "" {
		kind = event.ObjectKind
	}
	if kind != eventMergeRequest {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, kind)
	}

	if event.Project.ID == 0 || event.ObjectAttributes.LastCommit.ID == "" {
		return nil, fmt.Errorf("%w: missing project id or last commit", ErrInvalidEvent)
	}
	return event, nil
}

// ProcessEvent scans the last commit of a merge request and reports the
// result on it. The returned error is set only when GitLab could not be
// talked to; scan failures are reported as a failed status.
func (h *Handler) ProcessEvent(ctx context.Context, event *gogitlab.MergeEvent) (Outcome, error) {
	projectID := event.Project.ID
	namespace := event.Project.PathWithNamespace
	sha := event.ObjectAttributes.LastCommit.ID

	outcome := Outcome{ScanID: uuid.NewString()}
	logger := h.logger.With("scan_id", outcome.ScanID, "project_id", projectID, "namespace", namespace, "sha", sha)
	logger.Info("merge request event received", "merge_request", event.ObjectAttributes.IID)

	if err := h.api.SetCommitStatus(ctx, projectID, sha, gitlab.StatePending, DescriptionPending); err != nil {
		logger.Error("failed to set pending status", "error", err)
		return outcome, err
	}

	sess, err := h.resolver.ForProject(ctx, projectID)
	if err != nil {
		logger.Error("failed to resolve ruleset", "error", err)
		return h.finish(ctx, logger, event, outcome, gitlab.StateFailed, DescriptionError)
	}

	changes, err := h.api.CommitDiff(ctx, projectID, sha)
	if err != nil {
		logger.Error("failed to fetch commit diff", "error", err)
		h.reportFailure(ctx, logger, projectID, sha)
		outcome.State, outcome.Description = gitlab.StateFailed, DescriptionError
		return outcome, err
	}

	res := h.scanner.WithLogger(logger).Scan(ctx, sess, namespace, changes)
	switch {
	case res.Failed:
		return h.finish(ctx, logger, event, outcome, gitlab.StateFailed, DescriptionError)
	case len(res.Findings) > 0:
		outcome.Findings = res.Findings
		for _, f := range res.Findings {
			logger.Warn("potential secret found", "signature", f.SignatureName, "path", f.FilePath, "matches", f.Matches)
		}
		return h.finish(ctx, logger, event, outcome, gitlab.StateFailed, findings.Describe(res.Findings, maxDescriptionLength))
	default:
		return h.finish(ctx, logger, event, outcome, gitlab.StateSuccess, DescriptionSuccess)
	}
}

func (h *Handler) finish(ctx context.Context, logger hclog.Logger, event *gogitlab.MergeEvent, outcome Outcome, state gitlab.State, description string) (Outcome, error) {
	outcome.State, outcome.Description = state, description

	statusCtx, cancel := statusContext(ctx)
	defer cancel()
	if err := h.api.SetCommitStatus(statusCtx, event.Project.ID, event.ObjectAttributes.LastCommit.ID, state, description); err != nil {
		logger.Error("failed to set final status", "state", state, "error", err)
		if state != gitlab.StateFailed {
			h.reportFailure(ctx, logger, event.Project.ID, event.ObjectAttributes.LastCommit.ID)
		}
		return outcome, err
	}

	logger.Info("commit status reported", "state", state, "findings", len(outcome.Findings))
	return outcome, nil
}

// reportFailure makes a best effort to leave the commit in a failed state.
func (h *Handler) reportFailure(ctx context.Context, logger hclog.Logger, projectID int, sha string) {
	statusCtx, cancel := statusContext(ctx)
	defer cancel()
	if err := h.api.SetCommitStatus(statusCtx, projectID, sha, gitlab.StateFailed, DescriptionError); err != nil {
		logger.Error("failed to set failure status", "error", err)
	}
}

// statusContext keeps the final status report alive when the event deadline
// has already passed, so a timed out scan still leaves a verdict behind.
func statusContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(ctx), failureStatusBudget)
}
