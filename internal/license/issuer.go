// Package license generates batches of license keys and registers them in the store.
package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/keydesk/keydesk/internal/licensekey"
	"github.com/keydesk/keydesk/internal/metrics"
	"github.com/keydesk/keydesk/internal/model"
	"github.com/keydesk/keydesk/internal/repository"
)

// MaxBatch is the largest number of keys one Issue call may generate.
const MaxBatch = 100

// regenerateAttempts bounds how often one slot is redrawn when the generator
// repeats a key already in the batch.
const regenerateAttempts = 3

// Errors returned by Issue.
var (
	ErrInvalidCount        = errors.New("invalid license count")
	ErrStoreUnavailable    = errors.New("license store unavailable")
	ErrUniquenessViolation = errors.New("license key collision")
	ErrKeyGeneration       = errors.New("license key generation failed")
)

// Store persists license records.
// InsertLicenses must be atomic: every row commits or none does.
type Store interface {
	InsertLicenses(ctx context.Context, rows []model.License) ([]model.License, error)
}

// KeyFunc produces one candidate license key.
type KeyFunc func() (string, error)

// Issuer creates license records. It does not authorize callers.
type Issuer struct {
	store    Store
	generate KeyFunc
	maxBatch int
	logger   *slog.Logger
	recorder metrics.Recorder
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithMaxBatch lowers the batch bound. Values outside [1, MaxBatch] are ignored.
func WithMaxBatch(n int) Option {
	return func(i *Issuer) {
		if n >= 1 && n <= MaxBatch {
			i.maxBatch = n
		}
	}
}

// WithKeyFunc replaces the key generator.
func WithKeyFunc(fn KeyFunc) Option {
	return func(i *Issuer) {
		if fn != nil {
			i.generate = fn
		}
	}
}

// WithLogger sets the issuer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Issuer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(i *Issuer) {
		if recorder != nil {
			i.recorder = recorder
		}
	}
}

// NewIssuer creates an Issuer writing to store.
func NewIssuer(store Store, opts ...Option) *Issuer {
	i := &Issuer{
		store:    store,
		generate: licensekey.Generate,
		maxBatch: MaxBatch,
		logger:   slog.Default(),
		recorder: metrics.NewNoop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// MaxBatch returns the effective batch bound.
func (i *Issuer) MaxBatch() int {
	return i.maxBatch
}

// Issue generates count keys and stores them with a single batch insert.
// On success it returns the committed keys in the order the store returned them.
// No partial batch is ever persisted and nothing is retried.
func (i *Issuer) Issue(ctx context.Context, count int) ([]string, error) {
	start := time.Now()

	if count < 1 || count > i.maxBatch {
		i.recorder.IncIssueFailure(metrics.FailureInvalidCount)
		return nil, fmt.Errorf("%w: %d is outside [1, %d]", ErrInvalidCount, count, i.maxBatch)
	}

	rows, err := i.buildRows(count)
	if err != nil {
		return nil, err
	}

	committed, err := i.store.InsertLicenses(ctx, rows)
	if err != nil {
		return nil, i.storeError(count, err)
	}

	keys := make([]string, len(committed))
	for n, lic := range committed {
		keys[n] = lic.Key
	}

	i.recorder.IncLicensesIssued(len(keys))
	i.recorder.ObserveIssueDuration(time.Since(start))

	attrs := []any{
		slog.Int("count", len(keys)),
		slog.Duration("duration", time.Since(start)),
	}
	if len(keys) > 0 {
		attrs = append(attrs, slog.String("first_key", licensekey.Mask(keys[0])))
	}
	i.logger.Info("licenses issued", attrs...)

	return keys, nil
}

// buildRows draws count distinct keys, each paired with is_used=false.
func (i *Issuer) buildRows(count int) ([]model.License, error) {
	rows := make([]model.License, 0, count)
	seen := make(map[string]struct{}, count)

	for len(rows) < count {
		key, err := i.distinctKey(seen)
		if err != nil {
			return nil, err
		}
		seen[key] = struct{}{}
		rows = append(rows, model.License{Key: key, IsUsed: false})
	}

	return rows, nil
}

func (i *Issuer) distinctKey(seen map[string]struct{}) (string, error) {
	for attempt := 0; attempt < regenerateAttempts; attempt++ {
		key, err := i.generate()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrKeyGeneration, err)
		}
		if !licensekey.Valid(key) {
			return "", fmt.Errorf("%w: malformed key", ErrKeyGeneration)
		}
		if _, dup := seen[key]; !dup {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w: generator repeated keys within one batch", ErrUniquenessViolation)
}

func (i *Issuer) storeError(count int, err error) error {
	if errors.Is(err, repository.ErrDuplicateKey) {
		i.recorder.IncIssueFailure(metrics.FailureCollision)
		i.logger.Warn("license batch rejected by uniqueness constraint",
			slog.Int("count", count),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %w", ErrUniquenessViolation, err)
	}

	i.recorder.IncIssueFailure(metrics.FailureStoreUnavailable)
	i.logger.Error("license batch insert failed",
		slog.Int("count", count),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
