// Package rulesource loads rulesets: the service-wide default ruleset from a
// file or URL, and per-repository rulesets that override it.
package rulesource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/jellydator/ttlcache/v3"

	"github.com/scan-io-git/secret-hook/internal/session"
	"github.com/scan-io-git/secret-hook/pkg/shared/files"
)

// LoadDefault reads the default ruleset from a local path or an http(s) URL.
// An empty location yields an empty session.
func LoadDefault(ctx context.Context, location string, client *resty.Client, logger hclog.Logger) (*session.Session, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if location == "" {
		logger.Warn("no default ruleset configured, repositories without their own ruleset are not scanned")
		return session.Empty(), nil
	}

	data, err := read(ctx, location, client)
	if err != nil {
		return nil, err
	}

	sess, err := session.Parse(data, logger)
	if err != nil {
		return nil, fmt.Errorf("default ruleset %q: %w", location, err)
	}
	logger.Info("default ruleset loaded", "location", location, "signatures", len(sess.Signatures()), "blacklists", len(sess.Blacklists()))
	return sess, nil
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func read(ctx context.Context, location string, client *resty.Client) ([]byte, error) {
	if !isURL(location) {
		data, err := files.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("failed to read ruleset %q: %w", location, err)
		}
		return data, nil
	}

	if client == nil {
		client = resty.New()
	}
	resp, err := client.R().SetContext(ctx).Get(location)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ruleset %q: %w", location, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch ruleset %q: unexpected status %s", location, resp.Status())
	}
	return resp.Body(), nil
}

// ConfigFetcher returns the raw ruleset file of a project. found is false
// when the project does not carry one.
type ConfigFetcher interface {
	RepositoryConfig(ctx context.Context, projectID int) (data []byte, found bool, err error)
}

// Resolver picks the session for a project: the repository ruleset when the
// project has one, otherwise the default.
type Resolver struct {
	fetcher  ConfigFetcher
	fallback *session.Session
	cache    *ttlcache.Cache[int, *session.Session]
	ttl      time.Duration
	logger   hclog.Logger
}

// NewResolver creates a Resolver. A nil fetcher always resolves to the
// default session; a zero ttl disables caching.
func NewResolver(fetcher ConfigFetcher, fallback *session.Session, ttl time.Duration, logger hclog.Logger) *Resolver {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if fallback == nil {
		fallback = session.Empty()
	}

	r := &Resolver{
		fetcher:  fetcher,
		fallback: fallback,
		ttl:      ttl,
		logger:   logger,
	}
	if ttl > 0 {
		r.cache = ttlcache.New[int, *session.Session](
			ttlcache.WithTTL[int, *session.Session](ttl),
			ttlcache.WithDisableTouchOnHit[int, *session.Session](),
		)
		go r.cache.Start()
	}
	return r
}

// Default returns the default session.
func (r *Resolver) Default() *session.Session {
	return r.fallback
}

// ForProject resolves the session for projectID. A repository ruleset that is
// not valid YAML is an error; failing to fetch it falls back to the default.
func (r *Resolver) ForProject(ctx context.Context, projectID int) (*session.Session, error) {
	if r.fetcher == nil {
		return r.fallback, nil
	}
	if r.cache == nil {
		sess, _, err := r.resolve(ctx, projectID)
		return sess, err
	}

	var (
		lerr     error
		uncached *session.Session
	)
	loader := ttlcache.LoaderFunc[int, *session.Session](
		func(c *ttlcache.Cache[int, *session.Session], key int) *ttlcache.Item[int, *session.Session] {
			sess, cacheable, err := r.resolve(ctx, key)
			switch {
			case err != nil:
				lerr = err
				return nil
			case !cacheable:
				uncached = sess
				return nil
			}
			return c.Set(key, sess, ttlcache.DefaultTTL)
		},
	)

	item := r.cache.Get(projectID, ttlcache.WithLoader[int, *session.Session](loader))
	if lerr != nil {
		return nil, lerr
	}
	if item == nil {
		return uncached, nil
	}
	return item.Value(), nil
}

// resolve fetches and parses the project ruleset. cacheable is false when
// the result is a fallback caused by a fetch failure.
func (r *Resolver) resolve(ctx context.Context, projectID int) (sess *session.Session, cacheable bool, err error) {
	data, found, err := r.fetcher.RepositoryConfig(ctx, projectID)
	if err != nil {
		r.logger.Warn("failed to fetch repository ruleset, using default", "project_id", projectID, "error", err)
		return r.fallback, false, nil
	}
	if !found {
		r.logger.Debug("using default ruleset", "project_id", projectID)
		return r.fallback, true, nil
	}

	sess, err = session.Parse(data, r.logger.With("project_id", projectID))
	if err != nil {
		return nil, false, fmt.Errorf("repository ruleset of project %d: %w", projectID, err)
	}
	r.logger.Debug("using repository ruleset", "project_id", projectID, "signatures", len(sess.Signatures()))
	return sess, true, nil
}

// Close stops the cache janitor.
func (r *Resolver) Close() {
	if r.cache != nil {
		r.cache.Stop()
	}
}
