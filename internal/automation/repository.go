package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/otg-controller/internal/device"
)

// Repository defines the interface for automation persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// LoadConfig returns the settings record with its triggers.
	// Returns ErrConfigNotFound when nothing has been saved yet.
	LoadConfig(ctx context.Context) (*Config, error)

	// SaveConfig writes the settings and replaces the trigger list in one
	// transaction. The stored running flag is left alone on update.
	SaveConfig(ctx context.Context, cfg *Config) error

	// SetRunning updates only the running flag.
	SetRunning(ctx context.Context, flag RunFlag) error

	// Trigger CRUD
	ListTriggers(ctx context.Context) ([]Trigger, error)
	SaveTrigger(ctx context.Context, t *Trigger) error
	DeleteTrigger(ctx context.Context, id string) error

	// Cycle history
	RecordCycle(ctx context.Context, res *CycleResult) error
	ListCycles(ctx context.Context, limit int) ([]CycleResult, error)
}

// Cycle history limits.
const (
	defaultCycleLimit = 50
	maxCycleLimit     = 500
)

// historyLayout is fixed-width so started_at sorts lexically.
const historyLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// LoadConfig retrieves the settings row and every trigger.
func (r *SQLiteRepository) LoadConfig(ctx context.Context) (*Config, error) {
	query := `
		SELECT name, platform, device_ids, post_interval_seconds,
			scroll_delay_seconds, viewing_time, running, updated_at
		FROM automation_config
		WHERE id = 1`

	var cfg Config
	var platform, deviceIDsJSON, running, updatedAt string
	var viewingJSON sql.NullString

	err := r.db.QueryRowContext(ctx, query).Scan(
		&cfg.Name,
		&platform,
		&deviceIDsJSON,
		&cfg.PostIntervalSeconds,
		&cfg.ScrollDelaySeconds,
		&viewingJSON,
		&running,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("querying automation config: %w", err)
	}

	cfg.Platform = device.Platform(platform)
	cfg.Running = RunFlag(running)
	cfg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Zero time on malformed rows

	if err := unmarshalStrings(deviceIDsJSON, &cfg.DeviceIDs); err != nil {
		return nil, fmt.Errorf("unmarshalling device_ids: %w", err)
	}
	if viewingJSON.Valid && viewingJSON.String != "" && viewingJSON.String != "null" {
		var vt ViewingTime
		if err := json.Unmarshal([]byte(viewingJSON.String), &vt); err != nil {
			return nil, fmt.Errorf("unmarshalling viewing_time: %w", err)
		}
		cfg.ViewingTime = &vt
	}

	triggers, err := r.ListTriggers(ctx)
	if err != nil {
		return nil, err
	}
	cfg.Triggers = triggers
	return &cfg, nil
}

// SaveConfig upserts the settings row and replaces all triggers.
func (r *SQLiteRepository) SaveConfig(ctx context.Context, cfg *Config) error {
	deviceIDs, err := marshalStrings(cfg.DeviceIDs)
	if err != nil {
		return fmt.Errorf("marshalling device_ids: %w", err)
	}
	viewing, err := marshalViewingTime(cfg.ViewingTime)
	if err != nil {
		return fmt.Errorf("marshalling viewing_time: %w", err)
	}
	running := cfg.Running
	if running == "" {
		running = RunStopped
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op

	_, err = tx.ExecContext(ctx, `
		INSERT INTO automation_config (
			id, name, platform, device_ids, post_interval_seconds,
			scroll_delay_seconds, viewing_time, running, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			platform = excluded.platform,
			device_ids = excluded.device_ids,
			post_interval_seconds = excluded.post_interval_seconds,
			scroll_delay_seconds = excluded.scroll_delay_seconds,
			viewing_time = excluded.viewing_time,
			updated_at = excluded.updated_at`,
		cfg.Name,
		string(cfg.Platform),
		deviceIDs,
		cfg.PostIntervalSeconds,
		cfg.ScrollDelaySeconds,
		viewing,
		string(running),
		cfg.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting automation config: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM triggers`); err != nil {
		return fmt.Errorf("clearing triggers: %w", err)
	}
	now := cfg.UpdatedAt.UTC().Format(time.RFC3339)
	for i := range cfg.Triggers {
		if err := insertTrigger(ctx, tx, &cfg.Triggers[i], i, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing automation config: %w", err)
	}
	return nil
}

// SetRunning updates the running flag, creating no row if none exists.
func (r *SQLiteRepository) SetRunning(ctx context.Context, flag RunFlag) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE automation_config SET running = ?, updated_at = ? WHERE id = 1`,
		string(flag),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("updating running flag: %w", err)
	}
	return nil
}

// ListTriggers returns all triggers in their configured order.
func (r *SQLiteRepository) ListTriggers(ctx context.Context) ([]Trigger, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, keywords, device_ids, comment_templates,
			comment_language, probability
		FROM triggers
		ORDER BY sort_order, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying triggers: %w", err)
	}
	defer rows.Close()

	triggers := []Trigger{}
	for rows.Next() {
		t, scanErr := scanTrigger(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning trigger: %w", scanErr)
		}
		triggers = append(triggers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating triggers: %w", err)
	}
	return triggers, nil
}

// SaveTrigger updates a trigger in place or appends it to the end of the list.
func (r *SQLiteRepository) SaveTrigger(ctx context.Context, t *Trigger) error {
	keywords, err := marshalStrings(t.Keywords)
	if err != nil {
		return fmt.Errorf("marshalling keywords: %w", err)
	}
	deviceIDs, err := marshalStrings(t.DeviceIDs)
	if err != nil {
		return fmt.Errorf("marshalling device_ids: %w", err)
	}
	templates, err := marshalStrings(t.CommentTemplates)
	if err != nil {
		return fmt.Errorf("marshalling comment_templates: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO triggers (
			id, action, keywords, device_ids, comment_templates,
			comment_language, probability, sort_order, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(sort_order), -1) + 1 FROM triggers), ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			action = excluded.action,
			keywords = excluded.keywords,
			device_ids = excluded.device_ids,
			comment_templates = excluded.comment_templates,
			comment_language = excluded.comment_language,
			probability = excluded.probability,
			updated_at = excluded.updated_at`,
		t.ID,
		string(t.Action),
		keywords,
		deviceIDs,
		templates,
		t.CommentLanguage,
		nullableFloat(t.Probability),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("saving trigger: %w", err)
	}
	return nil
}

// DeleteTrigger removes a trigger by ID.
func (r *SQLiteRepository) DeleteTrigger(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM triggers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting trigger: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTriggerNotFound
	}
	return nil
}

// RecordCycle appends a cycle result to the history table.
func (r *SQLiteRepository) RecordCycle(ctx context.Context, res *CycleResult) error {
	var caption string
	var topics []string
	if res.Analysis != nil {
		caption = res.Analysis.Caption
		topics = res.Analysis.Topics
	}
	topicsJSON, err := marshalStrings(topics)
	if err != nil {
		return fmt.Errorf("marshalling topics: %w", err)
	}
	var triggerID string
	if res.MatchedTrigger != nil {
		triggerID = res.MatchedTrigger.ID
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO cycle_results (
			id, device_id, device_label, started_at, completed_at, success,
			skipped_by_humanization, skipped_by_probability, scrolled, analyzed,
			caption, topics, trigger_id, match_count, action, action_success,
			action_error, viewing_ms, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID,
		res.DeviceID,
		res.DeviceLabel,
		res.StartedAt.UTC().Format(historyLayout),
		res.CompletedAt.UTC().Format(historyLayout),
		boolToInt(res.Success),
		boolToInt(res.SkippedByHumanization),
		boolToInt(res.SkippedByProbability),
		boolToInt(res.Scrolled),
		boolToInt(res.Analyzed),
		caption,
		topicsJSON,
		triggerID,
		res.MatchCount,
		string(res.Action),
		nullableBool(res.ActionSuccess),
		res.ActionError,
		res.ViewingPause.Milliseconds(),
		res.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting cycle result: %w", err)
	}
	return nil
}

// ListCycles returns the most recent cycle results, newest first.
func (r *SQLiteRepository) ListCycles(ctx context.Context, limit int) ([]CycleResult, error) {
	if limit <= 0 {
		limit = defaultCycleLimit
	}
	if limit > maxCycleLimit {
		limit = maxCycleLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, device_label, started_at, completed_at, success,
			skipped_by_humanization, skipped_by_probability, scrolled, analyzed,
			caption, topics, trigger_id, match_count, action, action_success,
			action_error, viewing_ms, error
		FROM cycle_results
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying cycle results: %w", err)
	}
	defer rows.Close()

	results := []CycleResult{}
	for rows.Next() {
		res, scanErr := scanCycle(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning cycle result: %w", scanErr)
		}
		results = append(results, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cycle results: %w", err)
	}
	return results, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTrigger(ctx context.Context, db execer, t *Trigger, order int, now string) error {
	keywords, err := marshalStrings(t.Keywords)
	if err != nil {
		return fmt.Errorf("marshalling keywords: %w", err)
	}
	deviceIDs, err := marshalStrings(t.DeviceIDs)
	if err != nil {
		return fmt.Errorf("marshalling device_ids: %w", err)
	}
	templates, err := marshalStrings(t.CommentTemplates)
	if err != nil {
		return fmt.Errorf("marshalling comment_templates: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO triggers (
			id, action, keywords, device_ids, comment_templates,
			comment_language, probability, sort_order, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		string(t.Action),
		keywords,
		deviceIDs,
		templates,
		t.CommentLanguage,
		nullableFloat(t.Probability),
		order,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("inserting trigger %s: %w", t.ID, err)
	}
	return nil
}

func scanTrigger(scanner rowScanner) (*Trigger, error) {
	var t Trigger
	var action, keywords, deviceIDs, templates string
	var probability sql.NullFloat64

	err := scanner.Scan(
		&t.ID,
		&action,
		&keywords,
		&deviceIDs,
		&templates,
		&t.CommentLanguage,
		&probability,
	)
	if err != nil {
		return nil, err
	}

	t.Action = ActionKind(action)
	if probability.Valid {
		p := probability.Float64
		t.Probability = &p
	}
	if err := unmarshalStrings(keywords, &t.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshalling keywords: %w", err)
	}
	if err := unmarshalStrings(deviceIDs, &t.DeviceIDs); err != nil {
		return nil, fmt.Errorf("unmarshalling device_ids: %w", err)
	}
	if err := unmarshalStrings(templates, &t.CommentTemplates); err != nil {
		return nil, fmt.Errorf("unmarshalling comment_templates: %w", err)
	}
	return &t, nil
}

func scanCycle(scanner rowScanner) (*CycleResult, error) {
	var c CycleResult
	var startedAt, completedAt, caption, topicsJSON, triggerID, action string
	var success, skippedHuman, skippedProb, scrolled, analyzed int
	var actionSuccess sql.NullInt64
	var viewingMS int64

	err := scanner.Scan(
		&c.ID,
		&c.DeviceID,
		&c.DeviceLabel,
		&startedAt,
		&completedAt,
		&success,
		&skippedHuman,
		&skippedProb,
		&scrolled,
		&analyzed,
		&caption,
		&topicsJSON,
		&triggerID,
		&c.MatchCount,
		&action,
		&actionSuccess,
		&c.ActionError,
		&viewingMS,
		&c.Error,
	)
	if err != nil {
		return nil, err
	}

	c.StartedAt, _ = time.Parse(historyLayout, startedAt)     //nolint:errcheck // Zero time on malformed rows
	c.CompletedAt, _ = time.Parse(historyLayout, completedAt) //nolint:errcheck // Zero time on malformed rows
	c.Success = success != 0
	c.SkippedByHumanization = skippedHuman != 0
	c.SkippedByProbability = skippedProb != 0
	c.Scrolled = scrolled != 0
	c.Analyzed = analyzed != 0
	c.Action = ActionKind(action)
	c.ViewingPause = time.Duration(viewingMS) * time.Millisecond

	if actionSuccess.Valid {
		ok := actionSuccess.Int64 != 0
		c.ActionSuccess = &ok
	}
	if c.Analyzed {
		a := Analysis{Caption: caption}
		if err := unmarshalStrings(topicsJSON, &a.Topics); err != nil {
			return nil, fmt.Errorf("unmarshalling topics: %w", err)
		}
		c.Analysis = &a
		c.SearchText = a.SearchText()
	}
	if triggerID != "" {
		c.MatchedTrigger = &Trigger{ID: triggerID, Action: c.Action}
	}
	return &c, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func marshalStrings(v []string) (string, error) {
	if len(v) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalStrings(s string, dst *[]string) error {
	if s == "" || s == "[]" || s == "null" {
		*dst = nil
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}

func marshalViewingTime(vt *ViewingTime) (sql.NullString, error) {
	if vt == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(vt)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullableBool(b *bool) sql.NullInt64 {
	if b == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(boolToInt(*b)), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
