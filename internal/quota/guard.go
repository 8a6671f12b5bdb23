package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"audiovault/internal/logging"
	"audiovault/internal/services"
)

// Source supplies an owner's ceiling and live usage. Used must be computed
// from persisted asset sizes on every call, never cached.
type Source interface {
	QuotaBytes(ctx context.Context, owner string) (int64, bool, error)
	UsedBytes(ctx context.Context, owner string) (int64, error)
}

// Guard answers admission checks against a Source.
//
// In the default soft mode two concurrent uploads near the boundary can both
// be admitted. Strict mode holds a per-owner lock across the check and the
// caller's commit, which closes that window for a single process.
type Guard struct {
	source Source
	strict bool
	locks  *keyedMutex
	logger *slog.Logger
}

// NewGuard constructs a Guard over source.
func NewGuard(source Source, strict bool, logger *slog.Logger) *Guard {
	return &Guard{
		source: source,
		strict: strict,
		locks:  newKeyedMutex(),
		logger: logging.NewComponentLogger(logger, "quota"),
	}
}

// Info returns the owner's current usage or an ErrNotFound-classified error.
func (g *Guard) Info(ctx context.Context, owner string) (Usage, error) {
	quotaBytes, ok, err := g.source.QuotaBytes(ctx, owner)
	if err != nil {
		return Usage{}, services.Wrap(services.ErrIO, "quota", "read quota", owner, err)
	}
	if !ok {
		return Usage{}, services.Wrap(services.ErrNotFound, "quota", "read quota", fmt.Sprintf("owner %s not found", owner), nil)
	}
	used, err := g.source.UsedBytes(ctx, owner)
	if err != nil {
		return Usage{}, services.Wrap(services.ErrIO, "quota", "read usage", owner, err)
	}
	return Summarize(quotaBytes, used), nil
}

// Check evaluates an upload of size bytes for owner. An unknown owner yields a
// denied decision with ReasonUserNotFound rather than an error.
func (g *Guard) Check(ctx context.Context, owner string, size int64) (Decision, error) {
	usage, err := g.Info(ctx, owner)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return Decision{Allowed: false, Reason: ReasonUserNotFound, Message: fmt.Sprintf("User %s not found", owner), Required: size}, nil
		}
		return Decision{}, err
	}
	decision := Evaluate(size, usage.Quota, usage.Used)
	logger := logging.WithContext(ctx, g.logger)
	if decision.Allowed {
		logger.Debug("upload admitted",
			logging.String(logging.FieldOwner, owner),
			logging.Int64("size", size),
			logging.Int64("available", usage.Available),
		)
	} else {
		logger.Info("upload denied",
			logging.String(logging.FieldOwner, owner),
			logging.String("reason", string(decision.Reason)),
			logging.Int64("size", size),
			logging.Int64("available", usage.Available),
		)
	}
	return decision, nil
}

// Admit checks an upload and, only when it is allowed, runs commit. A denied
// decision is returned together with an ErrQuotaExceeded-classified error
// (ErrValidation for unknown owners) and commit is not called. In strict
// mode check and commit run under the owner's lock.
func (g *Guard) Admit(ctx context.Context, owner string, size int64, commit func(context.Context) error) (Decision, error) {
	if g.strict {
		unlock := g.locks.lock(owner)
		defer unlock()
	}
	decision, err := g.Check(ctx, owner, size)
	if err != nil {
		return decision, err
	}
	if !decision.Allowed {
		marker := services.ErrQuotaExceeded
		if decision.Reason == ReasonUserNotFound {
			marker = services.ErrValidation
		}
		return decision, services.Wrap(marker, "quota", "admit", decision.Message, nil)
	}
	if commit != nil {
		if err := commit(ctx); err != nil {
			return decision, err
		}
	}
	return decision, nil
}

// Strict reports whether check and commit are serialized per owner.
func (g *Guard) Strict() bool {
	return g.strict
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
