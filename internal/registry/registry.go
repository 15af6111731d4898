// Package registry is the mutation façade over documents, tags, and facets.
// Every operation checks authorization, runs the identity and deduplication
// algorithms, persists inside one transaction together with its outbox
// events, and nudges the event drainer after commit.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/minerva-intel/minerva/pkg/events"
	"github.com/minerva-intel/minerva/pkg/storage"
)

// Config holds registry-level settings.
type Config struct {
	// ReferencePrefix is the leading component of document references,
	// e.g. "DI" yields "DI-2024-03-007".
	ReferencePrefix string
}

// Registry coordinates the core algorithms over a database, a file store,
// and the event outbox. The algorithms themselves are stateless; the only
// shared state between requests is the database.
type Registry struct {
	db         *gorm.DB
	store      *storage.Store
	authorizer Authorizer
	drainer    *events.Drainer
	log        hclog.Logger
	cfg        Config

	// now is stubbed in tests to pin registration periods.
	now func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithDrainer attaches an outbox drainer to nudge after commits.
func WithDrainer(d *events.Drainer) Option {
	return func(r *Registry) { r.drainer = d }
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New returns a Registry. A nil authorizer allows everything; a nil logger
// discards.
func New(db *gorm.DB, store *storage.Store, authorizer Authorizer, log hclog.Logger, cfg Config, opts ...Option) *Registry {
	if authorizer == nil {
		authorizer = AllowAll{}
	}
	if log == nil {
		log = hclog.NewNullLogger()
	}
	if cfg.ReferencePrefix == "" {
		cfg.ReferencePrefix = "DI"
	}
	r := &Registry{
		db:         db,
		store:      store,
		authorizer: authorizer,
		log:        log,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// authorize consults the authorization check and maps a denial onto
// ErrUnauthorized.
func (r *Registry) authorize(ctx context.Context, principal string, action Action, entity string) error {
	if err := r.authorizer.Authorize(ctx, principal, action, entity); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnauthorized, action, entity, err)
	}
	return nil
}

// wakeDrainer nudges the outbox drainer after a commit, if one is attached.
func (r *Registry) wakeDrainer() {
	if r.drainer != nil {
		r.drainer.Wake()
	}
}

// withConflictRetry runs fn, and when the commit fails on a uniqueness
// violation, runs it once more so slugs and sequences are recomputed against
// the state that won the race. A second violation surfaces as ConflictError.
func (r *Registry) withConflictRetry(fn func() error) error {
	err := fn()
	if err == nil || !isUniqueViolation(err) {
		return err
	}

	r.log.Warn("identifier conflict on commit, recomputing and retrying", "error", err)
	if err := fn(); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Err: err}
		}
		return err
	}
	return nil
}
