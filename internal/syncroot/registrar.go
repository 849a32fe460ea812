// Package syncroot registers local directories as placeholder-backed cloud
// sync roots with the OS file-virtualization subsystem.
//
// The registrar validates provider options and registration fields, encodes
// the fixed-layout native command and hands it to a Platform. Failures are
// returned as typed errors and are never retried or logged here.
package syncroot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/syncroot/internal/metrics"
)

// State is the lifecycle position of one directory root.
type State int

const (
	StateUnregistered State = iota
	StateRegistering
	StateRegistered
	StateUnregistering
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateUnregistering:
		return "unregistering"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Registrar issues register and unregister requests against a Platform.
// Re-registering a directory that already is a sync root fails with
// ErrAlreadyRegistered.
type Registrar struct {
	platform Platform
	logger   *zap.Logger

	mu       sync.Mutex
	inflight map[string]State
}

// Option configures a Registrar.
type Option func(*Registrar)

// WithLogger sets the logger used for successful transitions.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registrar) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistrar creates a registrar backed by p.
func NewRegistrar(p Platform, opts ...Option) *Registrar {
	r := &Registrar{
		platform: p,
		logger:   zap.NewNop(),
		inflight: make(map[string]State),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates opts and reg, encodes the command and calls the OS
// registration entry point. The call blocks on the OS; run it off any
// goroutine that must stay responsive.
func (r *Registrar) Register(ctx context.Context, opts ProviderOptions, reg Registration) (err error) {
	start := time.Now()
	defer func() { metrics.RecordRegistration("register", outcome(err), time.Since(start)) }()

	if err := opts.Validate(); err != nil {
		return err
	}
	cmd, err := BuildCommand(reg.Name, reg.AccountID, reg.Directory, reg.Policy)
	if err != nil {
		return err
	}
	if !filepath.IsAbs(reg.Directory) {
		return &InvalidFieldError{Field: FieldDirectory, Reason: "path is not absolute"}
	}

	key := rootKey(reg.Directory)
	if err := r.begin(key, StateRegistering); err != nil {
		return err
	}
	defer r.end(key)

	if err := ctx.Err(); err != nil {
		return err
	}

	existing, ok, err := r.platform.Lookup(ctx, reg.Directory)
	if err != nil {
		return fmt.Errorf("syncroot: lookup %s: %w", reg.Directory, err)
	}
	if ok {
		return &AlreadyRegisteredError{Directory: reg.Directory, AccountID: existing.AccountID}
	}

	code, err := r.platform.Register(ctx, opts.ProviderID, mustEncode(cmd))
	if err != nil {
		return fmt.Errorf("syncroot: register %s: %w", reg.Directory, err)
	}
	switch code {
	case CodeSuccess:
	case CodeAlreadyExists:
		// Another process won the race between lookup and register.
		return &AlreadyRegisteredError{Directory: reg.Directory}
	default:
		return &OSError{Op: "register", Code: code}
	}

	r.logger.Info("sync root registered",
		zap.String("sync_root", reg.Directory),
		zap.String("account_id", reg.AccountID),
		zap.Stringer("policy", reg.Policy),
	)
	return nil
}

// Unregister removes the sync root at directory.
func (r *Registrar) Unregister(ctx context.Context, directory string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordRegistration("unregister", outcome(err), time.Since(start)) }()

	key := rootKey(directory)
	if err := r.begin(key, StateUnregistering); err != nil {
		return err
	}
	defer r.end(key)

	if err := ctx.Err(); err != nil {
		return err
	}

	if _, ok, err := r.platform.Lookup(ctx, directory); err != nil {
		return fmt.Errorf("syncroot: lookup %s: %w", directory, err)
	} else if !ok {
		return ErrNotRegistered
	}

	code, err := r.platform.Unregister(ctx, directory)
	if err != nil {
		return fmt.Errorf("syncroot: unregister %s: %w", directory, err)
	}
	switch code {
	case CodeSuccess:
	case CodeNotFound:
		return ErrNotRegistered
	default:
		return &OSError{Op: "unregister", Code: code}
	}

	r.logger.Info("sync root unregistered", zap.String("sync_root", directory))
	return nil
}

// State reports where directory is in its lifecycle. Transitions started by
// this registrar take precedence over what the platform reports.
func (r *Registrar) State(ctx context.Context, directory string) (State, error) {
	r.mu.Lock()
	s, busy := r.inflight[rootKey(directory)]
	r.mu.Unlock()
	if busy {
		return s, nil
	}

	_, ok, err := r.platform.Lookup(ctx, directory)
	if err != nil {
		return StateUnregistered, fmt.Errorf("syncroot: lookup %s: %w", directory, err)
	}
	if ok {
		return StateRegistered, nil
	}
	return StateUnregistered, nil
}

// Lookup returns the platform's record for directory.
func (r *Registrar) Lookup(ctx context.Context, directory string) (SyncRootInfo, bool, error) {
	return r.platform.Lookup(ctx, directory)
}

func (r *Registrar) begin(key string, s State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[key]; busy {
		return ErrTransitionInProgress
	}
	r.inflight[key] = s
	return nil
}

func (r *Registrar) end(key string) {
	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()
}

func rootKey(directory string) string {
	return filepath.Clean(directory)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsValidation(err):
		return "invalid"
	case errors.Is(err, ErrAlreadyRegistered):
		return "already_registered"
	default:
		return "error"
	}
}
