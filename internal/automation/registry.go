package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/otg-controller/internal/device"
)

// Registry provides automation settings and triggers with caching and
// thread safety. It wraps a Repository and keeps the single Config record
// in memory; it satisfies ConfigStore for the Engine.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by the write methods.
//
// All public methods are thread-safe.
type Registry struct {
	repo     Repository
	defaults Config

	cache   *Config
	cacheMu sync.RWMutex // Protects cache
	logger  Logger
	now     func() time.Time
}

// NewRegistry creates a new automation registry. defaults seeds the
// record when nothing has been saved yet.
func NewRegistry(repo Repository, defaults Config) *Registry {
	return &Registry{
		repo:     repo,
		defaults: defaults,
		logger:   noopLogger{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// DefaultConfig returns the settings used before any have been saved.
func DefaultConfig() Config {
	return Config{
		Name:                "Default automation",
		Platform:            device.PlatformTikTok,
		PostIntervalSeconds: 10,
		ScrollDelaySeconds:  3,
		Running:             RunStopped,
	}
}

// RefreshCache reloads the record from the repository. A missing record is
// replaced with the defaults, which are persisted. A running flag left over
// from a previous process is reset, since no loop survives a restart.
func (r *Registry) RefreshCache(ctx context.Context) error {
	cfg, err := r.repo.LoadConfig(ctx)
	if errors.Is(err, ErrConfigNotFound) {
		cfg = r.defaults.DeepCopy()
		SetDefaults(cfg)
		cfg.UpdatedAt = r.now()
		if saveErr := r.repo.SaveConfig(ctx, cfg); saveErr != nil {
			return fmt.Errorf("seeding automation config: %w", saveErr)
		}
		r.logger.Info("automation config seeded with defaults", "name", cfg.Name, "platform", cfg.Platform)
	} else if err != nil {
		return fmt.Errorf("loading automation config: %w", err)
	}

	if cfg.Running == RunRunning {
		if err := r.repo.SetRunning(ctx, RunStopped); err != nil {
			return fmt.Errorf("resetting running flag: %w", err)
		}
		cfg.Running = RunStopped
		r.logger.Warn("automation was marked running at startup, reset to stopped")
	}

	r.cacheMu.Lock()
	r.cache = cfg
	r.cacheMu.Unlock()

	r.logger.Info("automation cache refreshed", "triggers", len(cfg.Triggers), "devices", len(cfg.DeviceIDs))
	return nil
}

// cached returns the cached record, loading it on first use. Callers must
// not modify the result.
func (r *Registry) cached(ctx context.Context) (*Config, error) {
	r.cacheMu.RLock()
	cfg := r.cache
	r.cacheMu.RUnlock()
	if cfg != nil {
		return cfg, nil
	}
	if err := r.RefreshCache(ctx); err != nil {
		return nil, err
	}
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return r.cache, nil
}

// LoadConfig returns a deep copy of the record.
func (r *Registry) LoadConfig(ctx context.Context) (*Config, error) {
	cfg, err := r.cached(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.DeepCopy(), nil
}

// SaveConfig validates and persists cfg, replacing its triggers. The
// running flag is not taken from cfg; only the Engine changes it, so the
// cached flag is carried over at swap time.
func (r *Registry) SaveConfig(ctx context.Context, cfg *Config) error {
	if _, err := r.cached(ctx); err != nil {
		return err
	}

	next := cfg.DeepCopy()
	SetDefaults(next)
	for i := range next.Triggers {
		if next.Triggers[i].ID == "" {
			next.Triggers[i].ID = GenerateID()
		}
	}
	if err := ValidateConfig(next); err != nil {
		return err
	}
	r.cacheMu.RLock()
	next.Running = r.cache.Running
	r.cacheMu.RUnlock()
	next.UpdatedAt = r.now()

	if err := r.repo.SaveConfig(ctx, next); err != nil {
		return err
	}

	// SetRunning may have landed while the repository was writing.
	r.cacheMu.Lock()
	next.Running = r.cache.Running
	r.cache = next
	r.cacheMu.Unlock()

	r.logger.Info("automation config saved", "name", next.Name, "platform", next.Platform, "triggers", len(next.Triggers))
	return nil
}

// SetRunning persists the running flag and updates the cache.
func (r *Registry) SetRunning(ctx context.Context, flag RunFlag) error {
	if _, err := r.cached(ctx); err != nil {
		return err
	}
	if err := r.repo.SetRunning(ctx, flag); err != nil {
		return err
	}

	r.cacheMu.Lock()
	next := r.cache.DeepCopy()
	next.Running = flag
	r.cache = next
	r.cacheMu.Unlock()
	return nil
}

// TriggersForDevice returns copies of the triggers scoped to deviceID, in
// configured order.
func (r *Registry) TriggersForDevice(ctx context.Context, deviceID string) ([]Trigger, error) {
	cfg, err := r.cached(ctx)
	if err != nil {
		return nil, err
	}
	var out []Trigger
	for i := range cfg.Triggers {
		if cfg.Triggers[i].AppliesTo(deviceID) {
			out = append(out, *cfg.Triggers[i].DeepCopy())
		}
	}
	return out, nil
}

// ListTriggers returns copies of every trigger in configured order.
func (r *Registry) ListTriggers(ctx context.Context) ([]Trigger, error) {
	cfg, err := r.cached(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Trigger, 0, len(cfg.Triggers))
	for i := range cfg.Triggers {
		out = append(out, *cfg.Triggers[i].DeepCopy())
	}
	return out, nil
}

// GetTrigger retrieves a trigger by ID.
func (r *Registry) GetTrigger(ctx context.Context, id string) (*Trigger, error) {
	cfg, err := r.cached(ctx)
	if err != nil {
		return nil, err
	}
	for i := range cfg.Triggers {
		if cfg.Triggers[i].ID == id {
			return cfg.Triggers[i].DeepCopy(), nil
		}
	}
	return nil, ErrTriggerNotFound
}

// UpsertTrigger validates and saves t, generating an ID when it has none.
// An existing trigger keeps its position; a new one is appended.
func (r *Registry) UpsertTrigger(ctx context.Context, t *Trigger) error {
	if _, err := r.cached(ctx); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = GenerateID()
	}
	t.Keywords = normaliseKeywords(t.Keywords)
	if err := ValidateTrigger(t); err != nil {
		return err
	}
	if err := r.repo.SaveTrigger(ctx, t); err != nil {
		return err
	}

	r.cacheMu.Lock()
	next := r.cache.DeepCopy()
	replaced := false
	for i := range next.Triggers {
		if next.Triggers[i].ID == t.ID {
			next.Triggers[i] = *t.DeepCopy()
			replaced = true
			break
		}
	}
	if !replaced {
		next.Triggers = append(next.Triggers, *t.DeepCopy())
	}
	r.cache = next
	r.cacheMu.Unlock()

	r.logger.Info("trigger saved", "id", t.ID, "action", t.Action, "keywords", len(t.Keywords))
	return nil
}

// DeleteTrigger removes a trigger from persistence and cache.
func (r *Registry) DeleteTrigger(ctx context.Context, id string) error {
	if _, err := r.cached(ctx); err != nil {
		return err
	}
	if err := r.repo.DeleteTrigger(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	next := r.cache.DeepCopy()
	kept := next.Triggers[:0]
	for _, t := range next.Triggers {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	next.Triggers = kept
	r.cache = next
	r.cacheMu.Unlock()

	r.logger.Info("trigger deleted", "id", id)
	return nil
}

// RecordCycle persists a cycle result to the history.
func (r *Registry) RecordCycle(ctx context.Context, res CycleResult) error {
	return r.repo.RecordCycle(ctx, &res)
}

// RecentCycles returns up to limit cycle results, newest first.
func (r *Registry) RecentCycles(ctx context.Context, limit int) ([]CycleResult, error) {
	return r.repo.ListCycles(ctx, limit)
}

// GetTriggerCount returns the number of cached triggers.
func (r *Registry) GetTriggerCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	if r.cache == nil {
		return 0
	}
	return len(r.cache.Triggers)
}
