package automation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength      = 100
	maxKeywords        = 50
	maxKeywordLength   = 100
	maxTemplates       = 50
	maxTemplateLength  = 500
	maxIntervalSeconds = 3600
	maxViewingSeconds  = 600
)

// Pre-computed validation set for O(1) action lookups.
var validActions map[ActionKind]struct{}

func init() {
	validActions = make(map[ActionKind]struct{}, len(AllActionKinds()))
	for _, a := range AllActionKinds() {
		validActions[a] = struct{}{}
	}
}

// SetDefaults fills zero-valued settings from DefaultConfig and normalises
// trigger keywords.
func SetDefaults(c *Config) {
	d := DefaultConfig()
	if strings.TrimSpace(c.Name) == "" {
		c.Name = d.Name
	}
	if c.Platform == "" {
		c.Platform = d.Platform
	}
	if c.PostIntervalSeconds == 0 {
		c.PostIntervalSeconds = d.PostIntervalSeconds
	}
	if c.ScrollDelaySeconds == 0 {
		c.ScrollDelaySeconds = d.ScrollDelaySeconds
	}
	if c.Running == "" {
		c.Running = RunStopped
	}
	if c.DeviceIDs == nil {
		c.DeviceIDs = []string{}
	}
	for i := range c.Triggers {
		c.Triggers[i].Keywords = normaliseKeywords(c.Triggers[i].Keywords)
	}
}

// ValidateConfig checks the settings the engine depends on.
// Returns an error describing the first validation failure found.
func ValidateConfig(c *Config) error {
	if c == nil {
		return ErrInvalidConfig
	}
	if len(c.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidConfig, maxNameLength)
	}
	if !c.Platform.Valid() {
		return fmt.Errorf("%w: unknown platform %q", ErrInvalidConfig, c.Platform)
	}
	if c.PostIntervalSeconds < 0 || c.PostIntervalSeconds > maxIntervalSeconds {
		return fmt.Errorf("%w: post_interval_seconds must be 0-%d", ErrInvalidConfig, maxIntervalSeconds)
	}
	if c.ScrollDelaySeconds < 0 || c.ScrollDelaySeconds > maxIntervalSeconds {
		return fmt.Errorf("%w: scroll_delay_seconds must be 0-%d", ErrInvalidConfig, maxIntervalSeconds)
	}
	if vt := c.ViewingTime; vt != nil {
		if err := validateRange("relevant", vt.Relevant); err != nil {
			return err
		}
		if err := validateRange("non_relevant", vt.NonRelevant); err != nil {
			return err
		}
	}

	seen := make(map[string]struct{}, len(c.Triggers))
	for i := range c.Triggers {
		t := &c.Triggers[i]
		if err := ValidateTrigger(t); err != nil {
			return fmt.Errorf("trigger[%d]: %w", i, err)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("trigger[%d]: %w: duplicate id %q", i, ErrInvalidTrigger, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

func validateRange(name string, r SecondsRange) error {
	if r.Min < 0 || r.Max < 0 || r.Max > maxViewingSeconds {
		return fmt.Errorf("%w: viewing_time.%s must be within 0-%d seconds", ErrInvalidConfig, name, maxViewingSeconds)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%w: viewing_time.%s min exceeds max", ErrInvalidConfig, name)
	}
	return nil
}

// ValidateTrigger checks a single trigger.
func ValidateTrigger(t *Trigger) error {
	if t == nil {
		return ErrInvalidTrigger
	}
	if t.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTrigger)
	}
	if _, ok := validActions[t.Action]; !ok {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidTrigger, t.Action)
	}

	if len(t.Keywords) == 0 {
		return fmt.Errorf("%w: at least one keyword is required", ErrInvalidTrigger)
	}
	if len(t.Keywords) > maxKeywords {
		return fmt.Errorf("%w: exceeds maximum of %d keywords", ErrInvalidTrigger, maxKeywords)
	}
	for _, kw := range t.Keywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("%w: keywords cannot be blank", ErrInvalidTrigger)
		}
		if len(kw) > maxKeywordLength {
			return fmt.Errorf("%w: keyword exceeds %d characters", ErrInvalidTrigger, maxKeywordLength)
		}
	}

	if len(t.CommentTemplates) > maxTemplates {
		return fmt.Errorf("%w: exceeds maximum of %d comment templates", ErrInvalidTrigger, maxTemplates)
	}
	for _, tpl := range t.CommentTemplates {
		if len(tpl) > maxTemplateLength {
			return fmt.Errorf("%w: comment template exceeds %d characters", ErrInvalidTrigger, maxTemplateLength)
		}
	}
	switch t.CommentLanguage {
	case "", "fr", "en":
	default:
		return fmt.Errorf("%w: comment_language must be fr or en", ErrInvalidTrigger)
	}

	if p := t.Probability; p != nil && (*p < 0 || *p > 1) {
		return fmt.Errorf("%w: probability must be 0-1", ErrInvalidTrigger)
	}
	return nil
}

func normaliseKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// GenerateID creates a new UUID for a trigger or cycle result.
func GenerateID() string {
	return uuid.New().String()
}
