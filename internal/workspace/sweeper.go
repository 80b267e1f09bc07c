package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/timmy/stylematch/internal/logger"
)

type entry struct {
	id       string
	modified time.Time
	done     bool
}

// Sweep removes finished workspaces older than the max age, then trims the
// oldest finished ones until at most max entries remain. Workspaces still in
// use are never removed. Unfinished directories left by a crashed process
// count as finished once they are older than the stale-after window.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	dirs, err := os.ReadDir(m.root)
	if err != nil {
		return 0, err
	}

	now := m.now()
	var entries []entry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		e, ok := m.inspect(d.Name())
		if !ok {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].modified.Before(entries[j].modified) })

	removable := func(e entry) bool {
		if m.isActive(e.id) {
			return false
		}
		return e.done || now.Sub(e.modified) > m.staleAfter
	}

	var errs []error
	removed := 0
	remaining := len(entries)
	for _, e := range entries {
		if !removable(e) {
			continue
		}
		expired := m.maxAge > 0 && now.Sub(e.modified) > m.maxAge
		overflow := m.maxEntries > 0 && remaining > m.maxEntries
		if !expired && !overflow {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.root, e.id)); err != nil {
			errs = append(errs, err)
			continue
		}
		m.removed(ctx, e.id)
		removed++
		remaining--
	}

	if removed > 0 {
		if m.metrics != nil {
			m.metrics.WorkspacesSwept.Add(float64(removed))
		}
		logger.With(logger.Fields{logger.FieldCount: removed}).Info(ctx, "Swept %d workspaces from %s", removed, m.root)
	}
	return removed, errors.Join(errs...)
}

func (m *Manager) inspect(id string) (entry, bool) {
	dir := filepath.Join(m.root, id)
	if info, err := os.Stat(filepath.Join(dir, doneMarker)); err == nil {
		return entry{id: id, modified: info.ModTime(), done: true}, true
	}
	info, err := os.Stat(dir)
	if err != nil {
		return entry{}, false
	}
	return entry{id: id, modified: info.ModTime()}, true
}

// Run sweeps every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ctx = logger.SetComponent(ctx, "workspace_sweeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil {
				logger.CtxWarn(ctx, "Workspace sweep failed: %v", err)
			}
		}
	}
}
