// Package snapshot records trade-history payloads to disk and replays them,
// so a run can be reproduced without live credentials.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bakkerme/salewatch/internal/core"
	"github.com/bakkerme/salewatch/internal/history"
)

// Config mirrors the watch document's snapshot section. Snapshot and Restore
// are mutually exclusive.
type Config struct {
	Snapshot bool   `yaml:"snapshot"`
	Restore  bool   `yaml:"restore"`
	Path     string `yaml:"path"`
}

func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Snapshot && c.Restore {
		return fmt.Errorf("snapshot and restore cannot both be true")
	}
	if (c.Snapshot || c.Restore) && strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("snapshot path is required")
	}
	return nil
}

// Save writes payload to path, creating parent directories.
func Save(path string, payload json.RawMessage) error {
	if path == "" {
		return fmt.Errorf("snapshot path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func Load(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if !json.Valid(data) {
		return nil, &history.ParseError{Snippet: history.Snippet(data)}
	}
	return json.RawMessage(data), nil
}

// Fetcher wraps another fetcher according to Config.
type Fetcher struct {
	next history.Fetcher
	cfg  Config
}

// Wrap returns next unchanged when cfg is nil or inactive.
func Wrap(next history.Fetcher, cfg *Config) history.Fetcher {
	if cfg == nil || (!cfg.Snapshot && !cfg.Restore) {
		return next
	}
	return &Fetcher{next: next, cfg: *cfg}
}

func (f *Fetcher) Fetch(ctx context.Context, market string) (json.RawMessage, error) {
	path := f.pathFor(market)
	if f.cfg.Restore {
		core.LoggerFromContext(ctx).Info("trade_history_restored", "path", path)
		return Load(path)
	}

	payload, err := f.next.Fetch(ctx, market)
	if err != nil {
		return nil, err
	}
	if err := Save(path, payload); err != nil {
		// Recording is a debugging aid; the run continues.
		core.LoggerFromContext(ctx).Warn("trade_history_snapshot_failed", "path", path, "error", err)
	}
	return payload, nil
}

// pathFor expands a "{market}" placeholder in the configured path.
func (f *Fetcher) pathFor(market string) string {
	return strings.ReplaceAll(f.cfg.Path, "{market}", market)
}
