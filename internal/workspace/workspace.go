// Package workspace manages per-request scratch directories.
//
// Every request gets its own directory under the configured root, holding an
// upload/ and a fetched/ subdirectory. Directories outlive the request so
// clients can re-fetch images; a background sweeper removes them by age and
// count. Nothing is ever cleared at the start of a request.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/metrics"
)

const (
	uploadDir  = "upload"
	fetchedDir = "fetched"
	doneMarker = ".done"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Manager hands out request workspaces and sweeps old ones.
type Manager struct {
	root       string
	maxAge     time.Duration
	maxEntries int
	staleAfter time.Duration
	metrics    *metrics.Metrics

	mu       sync.Mutex
	active   map[string]struct{}
	onRemove []func(ctx context.Context, id string)

	now func() time.Time
}

// NewManager creates the root directory if needed.
func NewManager(cfg config.WorkspaceConfig, m *metrics.Metrics) (*Manager, error) {
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, &domain.IOError{Op: "mkdir", Path: cfg.Root, Err: err}
	}
	return &Manager{
		root:       cfg.Root,
		maxAge:     cfg.MaxAge,
		maxEntries: cfg.MaxEntries,
		staleAfter: cfg.StaleAfter,
		metrics:    m,
		active:     make(map[string]struct{}),
		now:        time.Now,
	}, nil
}

// OnRemove registers fn to run after the sweeper deletes a workspace.
func (m *Manager) OnRemove(fn func(ctx context.Context, id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRemove = append(m.onRemove, fn)
}

func (m *Manager) removed(ctx context.Context, id string) {
	m.mu.Lock()
	hooks := m.onRemove
	m.mu.Unlock()
	for _, fn := range hooks {
		fn(ctx, id)
	}
}

// Root returns the directory all workspaces live under.
func (m *Manager) Root() string { return m.root }

// Acquire creates a fresh workspace named by a new UUID. Caller-supplied ids
// never name directories, so retried requests always get their own.
func (m *Manager) Acquire(ctx context.Context) (*Workspace, error) {
	return m.create(ctx, uuid.NewString())
}

// create makes the directory tree for id. It fails with an IOError if the
// directory exists or cannot be created.
func (m *Manager) create(ctx context.Context, id string) (*Workspace, error) {
	dir := filepath.Join(m.root, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, &domain.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	for _, sub := range []string{uploadDir, fetchedDir} {
		p := filepath.Join(dir, sub)
		if err := os.Mkdir(p, 0o755); err != nil {
			_ = os.RemoveAll(dir)
			return nil, &domain.IOError{Op: "mkdir", Path: p, Err: err}
		}
	}

	m.mu.Lock()
	m.active[id] = struct{}{}
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.WorkspacesActive.Inc()
	}

	logger.CtxDebug(ctx, "Acquired workspace %s", dir)
	return &Workspace{id: id, dir: dir, manager: m}, nil
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	_, ok := m.active[id]
	delete(m.active, id)
	m.mu.Unlock()
	if ok && m.metrics != nil {
		m.metrics.WorkspacesActive.Dec()
	}
}

func (m *Manager) isActive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[id]
	return ok
}

// FetchedFile resolves a file inside a workspace's fetched directory.
// It rejects ids and names that would escape the workspace root.
func (m *Manager) FetchedFile(id, name string) (string, error) {
	if !validID.MatchString(id) || name == "" || name != filepath.Base(name) || name == doneMarker {
		return "", fmt.Errorf("%w: fetched file %s/%s", domain.ErrInvalidInput, id, name)
	}
	return filepath.Join(m.root, id, fetchedDir, name), nil
}

// Workspace is one request's scratch directory.
type Workspace struct {
	id      string
	dir     string
	manager *Manager
	once    sync.Once
}

// ID returns the workspace id, also the directory name and the match id.
func (w *Workspace) ID() string { return w.id }

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// UploadDir returns the directory for the uploaded image.
func (w *Workspace) UploadDir() string { return filepath.Join(w.dir, uploadDir) }

// FetchedDir returns the directory for downloaded candidate images.
func (w *Workspace) FetchedDir() string { return filepath.Join(w.dir, fetchedDir) }

// SaveUpload writes the uploaded image and returns its path.
func (w *Workspace) SaveUpload(name string, data []byte) (string, error) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "upload"
	}
	path := filepath.Join(w.UploadDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &domain.IOError{Op: "write", Path: path, Err: err}
	}
	return path, nil
}

// Release marks the workspace finished. Files stay on disk until swept.
// Calling Release more than once is harmless.
func (w *Workspace) Release() {
	w.once.Do(func() {
		_ = os.WriteFile(filepath.Join(w.dir, doneMarker), nil, 0o644)
		w.manager.release(w.id)
	})
}
