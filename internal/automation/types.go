package automation

import (
	"strings"
	"time"

	"github.com/nerrad567/otg-controller/internal/device"
)

// ActionKind is what a trigger does to the post on screen.
type ActionKind string

// Action kinds. SAVE is TikTok's name and SHARE is Instagram's name for the
// same third button; either resolves to the platform's bookmark coordinate.
const (
	ActionLike           ActionKind = "LIKE"
	ActionComment        ActionKind = "COMMENT"
	ActionSave           ActionKind = "SAVE"
	ActionShare          ActionKind = "SHARE"
	ActionLikeAndSave    ActionKind = "LIKE_AND_SAVE"
	ActionLikeAndComment ActionKind = "LIKE_AND_COMMENT"
	ActionNoAction       ActionKind = "NO_ACTION"
	ActionSkip           ActionKind = "SKIP"
)

// AllActionKinds returns every recognised action kind.
func AllActionKinds() []ActionKind {
	return []ActionKind{
		ActionLike, ActionComment, ActionSave, ActionShare,
		ActionLikeAndSave, ActionLikeAndComment, ActionNoAction, ActionSkip,
	}
}

// RunFlag is the persisted running flag of the automation record.
type RunFlag string

// Persisted run flags.
const (
	RunStopped RunFlag = "stopped"
	RunRunning RunFlag = "running"
)

// Status is the engine's state machine position.
type Status string

// Engine states. idle is both initial and terminal.
const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

// Trigger maps keywords found in a post's caption/topics to an action.
type Trigger struct {
	ID     string     `json:"id"`
	Action ActionKind `json:"action"`

	// Keywords match case-insensitively as substrings of the analysis text.
	Keywords []string `json:"keywords"`

	// DeviceIDs scopes the trigger; empty applies it to every device.
	DeviceIDs []string `json:"device_ids,omitempty"`

	CommentTemplates []string `json:"comment_templates,omitempty"`
	CommentLanguage  string   `json:"comment_language,omitempty"`

	// Probability is both the execution probability and the weight used
	// when several triggers match. nil means 1.
	Probability *float64 `json:"probability,omitempty"`
}

// Weight returns the trigger's probability, treating nil as 1 and clamping
// negatives to 0.
func (t *Trigger) Weight() float64 {
	if t.Probability == nil {
		return 1
	}
	if *t.Probability < 0 {
		return 0
	}
	return *t.Probability
}

// AppliesTo reports whether the trigger's device scope includes deviceID.
func (t *Trigger) AppliesTo(deviceID string) bool {
	if len(t.DeviceIDs) == 0 {
		return true
	}
	for _, id := range t.DeviceIDs {
		if id == deviceID {
			return true
		}
	}
	return false
}

// DeepCopy creates a copy that shares no slices or pointers with t.
func (t *Trigger) DeepCopy() *Trigger {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Keywords = append([]string(nil), t.Keywords...)
	cp.DeviceIDs = append([]string(nil), t.DeviceIDs...)
	cp.CommentTemplates = append([]string(nil), t.CommentTemplates...)
	if t.Probability != nil {
		p := *t.Probability
		cp.Probability = &p
	}
	return &cp
}

// SecondsRange is an inclusive [Min, Max] duration range in seconds.
type SecondsRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ViewingTime holds the dwell ranges for relevant (a trigger matched) and
// non-relevant content.
type ViewingTime struct {
	Relevant    SecondsRange `json:"relevant"`
	NonRelevant SecondsRange `json:"non_relevant"`
}

// Config is the single automation record the engine runs from.
// Running is written only by the Engine.
type Config struct {
	Name                string          `json:"name"`
	Platform            device.Platform `json:"platform"`
	DeviceIDs           []string        `json:"device_ids"`
	PostIntervalSeconds float64         `json:"post_interval_seconds"`
	ScrollDelaySeconds  float64         `json:"scroll_delay_seconds"`
	ViewingTime         *ViewingTime    `json:"viewing_time,omitempty"`
	Triggers            []Trigger       `json:"triggers"`
	Running             RunFlag         `json:"running"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// DeepCopy creates a copy that shares no slices or pointers with c.
func (c *Config) DeepCopy() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.DeviceIDs = append([]string(nil), c.DeviceIDs...)
	if c.ViewingTime != nil {
		vt := *c.ViewingTime
		cp.ViewingTime = &vt
	}
	cp.Triggers = make([]Trigger, len(c.Triggers))
	for i := range c.Triggers {
		cp.Triggers[i] = *c.Triggers[i].DeepCopy()
	}
	return &cp
}

// Analysis is what the classifier saw on screen.
type Analysis struct {
	Caption string   `json:"caption"`
	Topics  []string `json:"topics"`
}

// SearchText is the lowercase caption and topics joined by spaces; triggers
// are matched against it.
func (a Analysis) SearchText() string {
	parts := make([]string, 0, len(a.Topics)+1)
	if a.Caption != "" {
		parts = append(parts, a.Caption)
	}
	parts = append(parts, a.Topics...)
	return strings.ToLower(strings.Join(parts, " "))
}

// CycleResult records one pass over one device. It is never modified after
// the CycleExecutor returns it.
type CycleResult struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"device_id"`
	DeviceLabel string    `json:"device_label,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	SkippedByHumanization bool `json:"skipped_by_humanization"`
	SkippedByProbability  bool `json:"skipped_by_probability"`
	Scrolled              bool `json:"scrolled"`
	Analyzed              bool `json:"analyzed"`

	Analysis   *Analysis `json:"analysis,omitempty"`
	SearchText string    `json:"search_text,omitempty"`

	MatchedTrigger *Trigger   `json:"matched_trigger,omitempty"`
	MatchCount     int        `json:"match_count"`
	Action         ActionKind `json:"action,omitempty"`
	ActionSuccess  *bool      `json:"action_success,omitempty"`
	ActionError    string     `json:"action_error,omitempty"`

	ViewingPause time.Duration `json:"viewing_pause_ns"`

	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
}

// Stats is a point-in-time snapshot of the engine.
type Stats struct {
	Status        Status       `json:"status"`
	CycleCount    int          `json:"cycle_count"`
	UptimeSeconds *int64       `json:"uptime_seconds"`
	StartedAt     *time.Time   `json:"started_at,omitempty"`
	CurrentDevice string       `json:"current_device,omitempty"`
	RecentErrors  []string     `json:"recent_errors"`
	LastResult    *CycleResult `json:"last_result,omitempty"`
}

// StartResult is returned by Engine.Start. On failure Error holds the
// operator-facing message and Err the matching sentinel.
type StartResult struct {
	Success  bool     `json:"success"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Err      error    `json:"-"`
}

// Result is returned by Engine.Stop.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}
