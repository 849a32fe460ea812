// Package emulated stands in for the OS file-virtualization subsystem on
// hosts without one. It accepts the same fixed-layout command as the native
// entry point and keeps registrations in a SQLite database, so they outlive
// the process exactly like OS registrations do.
package emulated

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers "sqlite"

	"github.com/fruitsalade/syncroot/internal/placeholder"
	"github.com/fruitsalade/syncroot/internal/syncroot"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	codeInvalidArg uint32 = 0x80070057 // E_INVALIDARG
	busyTimeoutMS         = 5000
)

// Platform implements syncroot.Platform and placeholder.Opener on top of a
// SQLite registration store.
type Platform struct {
	db     *sql.DB
	logger *zap.Logger

	mu   sync.Mutex
	open map[uintptr]*os.File
}

var (
	_ syncroot.Platform  = (*Platform)(nil)
	_ placeholder.Opener = (*Platform)(nil)
)

// Open opens (creating if needed) the registration store at path.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Platform, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("emulated: create state dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("emulated: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("emulated: open sqlite: %w", err)
	}
	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("emulated sync root store ready", zap.String("path", path))
	return &Platform{db: db, logger: logger, open: make(map[uintptr]*os.File)}, nil
}

// dsn applies the pragmas to every pooled connection.
func dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)",
		path, busyTimeoutMS)
}

func runMigrations(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("emulated: migration sub-filesystem: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("emulated: migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("emulated: running migrations: %w", err)
	}
	for _, r := range results {
		logger.Debug("applied migration",
			zap.String("source", r.Source.Path),
			zap.Duration("duration", r.Duration),
		)
	}
	return nil
}

// Register decodes the command the way the native entry point would and
// records the root. A directory that already is a root yields
// syncroot.CodeAlreadyExists.
func (p *Platform) Register(ctx context.Context, providerID string, command []byte) (uint32, error) {
	cmd, err := syncroot.UnmarshalCommand(command)
	if err != nil {
		p.logger.Debug("rejected malformed command", zap.Error(err))
		return codeInvalidArg, nil
	}
	reg := cmd.Registration()

	res, err := p.db.ExecContext(ctx, `
		INSERT INTO sync_roots (directory, account_id, name, provider_id, policy, registered_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (directory) DO NOTHING`,
		filepath.Clean(reg.Directory), reg.AccountID, reg.Name, providerID,
		int64(reg.Policy), time.Now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("emulated: insert sync root: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("emulated: insert sync root: %w", err)
	}
	if n == 0 {
		return syncroot.CodeAlreadyExists, nil
	}
	return syncroot.CodeSuccess, nil
}

// Unregister deletes the root at directory.
func (p *Platform) Unregister(ctx context.Context, directory string) (uint32, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sync_roots WHERE directory = ?`, filepath.Clean(directory))
	if err != nil {
		return 0, fmt.Errorf("emulated: delete sync root: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("emulated: delete sync root: %w", err)
	}
	if n == 0 {
		return syncroot.CodeNotFound, nil
	}
	return syncroot.CodeSuccess, nil
}

// Lookup returns the stored record for directory.
func (p *Platform) Lookup(ctx context.Context, directory string) (syncroot.SyncRootInfo, bool, error) {
	var (
		info         syncroot.SyncRootInfo
		policy       int64
		registeredAt int64
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT directory, account_id, name, provider_id, policy, registered_at
		FROM sync_roots WHERE directory = ?`, filepath.Clean(directory),
	).Scan(&info.Directory, &info.AccountID, &info.Name, &info.ProviderID, &policy, &registeredAt)
	if err == sql.ErrNoRows {
		return syncroot.SyncRootInfo{}, false, nil
	}
	if err != nil {
		return syncroot.SyncRootInfo{}, false, fmt.Errorf("emulated: lookup sync root: %w", err)
	}
	info.Policy = syncroot.PopulationPolicy(policy)
	info.RegisteredAt = time.Unix(0, registeredAt)
	return info, true, nil
}

// List returns every registered root for accountID, or all roots when
// accountID is empty.
func (p *Platform) List(ctx context.Context, accountID string) ([]syncroot.SyncRootInfo, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT directory, account_id, name, provider_id, policy, registered_at
		FROM sync_roots WHERE ? = '' OR account_id = ?
		ORDER BY directory`, accountID, accountID)
	if err != nil {
		return nil, fmt.Errorf("emulated: list sync roots: %w", err)
	}
	defer rows.Close()

	var roots []syncroot.SyncRootInfo
	for rows.Next() {
		var (
			info         syncroot.SyncRootInfo
			policy       int64
			registeredAt int64
		)
		if err := rows.Scan(&info.Directory, &info.AccountID, &info.Name, &info.ProviderID, &policy, &registeredAt); err != nil {
			return nil, fmt.Errorf("emulated: scan sync root: %w", err)
		}
		info.Policy = syncroot.PopulationPolicy(policy)
		info.RegisteredAt = time.Unix(0, registeredAt)
		roots = append(roots, info)
	}
	return roots, rows.Err()
}

// OpenPlaceholder opens a file below a registered root. Paths outside every
// root, and files that cannot be opened, come back from the OS as the
// invalid sentinel and are rejected by the guard.
func (p *Platform) OpenPlaceholder(path string) (placeholder.Handle, error) {
	under, err := p.underRoot(context.Background(), path)
	if err != nil {
		return placeholder.Handle{}, err
	}
	if !under {
		return placeholder.ValidateErr(placeholder.InvalidValue, path, syncroot.ErrNotRegistered)
	}

	f, err := os.Open(path)
	if err != nil {
		return placeholder.ValidateErr(placeholder.InvalidValue, path, err)
	}
	h, err := placeholder.Validate(f.Fd(), path)
	if err != nil {
		f.Close()
		return placeholder.Handle{}, err
	}

	p.mu.Lock()
	p.open[h.Raw] = f
	p.mu.Unlock()
	return h, nil
}

// ClosePlaceholder closes a handle returned by OpenPlaceholder.
func (p *Platform) ClosePlaceholder(h placeholder.Handle) error {
	p.mu.Lock()
	f, ok := p.open[h.Raw]
	delete(p.open, h.Raw)
	p.mu.Unlock()
	if !ok {
		return &placeholder.InvalidHandleError{Path: h.Path}
	}
	return f.Close()
}

func (p *Platform) underRoot(ctx context.Context, path string) (bool, error) {
	roots, err := p.List(ctx, "")
	if err != nil {
		return false, err
	}
	clean := filepath.Clean(path)
	for _, r := range roots {
		rel, err := filepath.Rel(r.Directory, clean)
		if err != nil {
			continue
		}
		if rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true, nil
		}
	}
	return false, nil
}

// Close closes open placeholder handles and the store.
func (p *Platform) Close() error {
	p.mu.Lock()
	for raw, f := range p.open {
		f.Close()
		delete(p.open, raw)
	}
	p.mu.Unlock()
	return p.db.Close()
}
