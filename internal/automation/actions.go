package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/otg-controller/internal/device"
)

// ActionPacing holds the waits between the gestures of an action. Each
// step waits Base plus a uniform extra in [0, Variance).
type ActionPacing struct {
	CommentOpen     Delay // comment sheet sliding up
	InputFocus      Delay // keyboard focus after tapping the input
	ReadingPause    Delay // between typing and sending
	PostSettle      Delay // comment posting animation
	CloseTransition Delay // sheet dismissing back to the feed
	ComboPause      time.Duration
}

// Delay is a base duration with random variance.
type Delay struct {
	Base     time.Duration
	Variance time.Duration
}

// DefaultActionPacing returns the pacing used in production.
func DefaultActionPacing() ActionPacing {
	return ActionPacing{
		CommentOpen:     Delay{800 * time.Millisecond, 400 * time.Millisecond},
		InputFocus:      Delay{300 * time.Millisecond, 200 * time.Millisecond},
		ReadingPause:    Delay{300 * time.Millisecond, 300 * time.Millisecond},
		PostSettle:      Delay{1200 * time.Millisecond, 600 * time.Millisecond},
		CloseTransition: Delay{500 * time.Millisecond, 300 * time.Millisecond},
		ComboPause:      500 * time.Millisecond,
	}
}

// ActionExecutor turns an action kind into taps, typing and waits on one
// device. It never runs two gestures concurrently.
type ActionExecutor struct {
	actuator Actuator
	timing   *TimingPolicy
	sleep    Sleeper
	pacing   ActionPacing
	logger   Logger
}

// NewActionExecutor creates an executor. A nil sleep uses Sleep and a nil
// logger discards output.
func NewActionExecutor(actuator Actuator, timing *TimingPolicy, sleep Sleeper, pacing ActionPacing, logger Logger) *ActionExecutor {
	if sleep == nil {
		sleep = Sleep
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &ActionExecutor{
		actuator: actuator,
		timing:   timing,
		sleep:    sleep,
		pacing:   pacing,
		logger:   logger,
	}
}

// Execute performs action on dev for platform. trigger supplies comment
// templates and may be nil for actions that don't comment.
//
// Returns:
//   - error: nil on success, or the first gesture failure, or one of
//     ErrCoordinatesNotConfigured, ErrNoCommentTemplates, ErrUnknownAction
func (x *ActionExecutor) Execute(ctx context.Context, dev *device.Device, platform device.Platform, action ActionKind, trigger *Trigger) error {
	coords := dev.PlatformCoords(platform)

	switch action {
	case ActionLike:
		return x.tapNamed(ctx, dev, coords, platform, "like")

	case ActionSave, ActionShare:
		return x.tapNamed(ctx, dev, coords, platform, bookmarkName(platform))

	case ActionLikeAndSave:
		if err := x.tapNamed(ctx, dev, coords, platform, "like"); err != nil {
			return err
		}
		if err := x.sleep(ctx, x.pacing.ComboPause); err != nil {
			return err
		}
		return x.tapNamed(ctx, dev, coords, platform, bookmarkName(platform))

	case ActionComment:
		return x.comment(ctx, dev, coords, platform, trigger)

	case ActionLikeAndComment:
		if err := x.tapNamed(ctx, dev, coords, platform, "like"); err != nil {
			return err
		}
		if err := x.sleep(ctx, x.pacing.ComboPause); err != nil {
			return err
		}
		return x.comment(ctx, dev, coords, platform, trigger)

	case ActionNoAction:
		x.logger.Debug("watch only, no interaction", "device", dev.ID)
		return nil

	case ActionSkip:
		x.logger.Debug("trigger says skip, no interaction", "device", dev.ID)
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
}

// bookmarkName is the platform's name for its third button.
func bookmarkName(p device.Platform) string {
	if p == device.PlatformInstagram {
		return "share"
	}
	return "save"
}

func pointFor(coords device.PlatformCoords, name string) *device.Point {
	if coords == nil {
		return nil
	}
	switch name {
	case "like":
		return coords.Like()
	case "comment":
		return coords.Comment()
	case "save", "share":
		return coords.Bookmark()
	case "comment_input":
		return coords.CommentInput()
	case "comment_send":
		return coords.CommentSend()
	case "comment_close", "comment_back":
		return coords.CommentClose()
	}
	return nil
}

// tapNamed taps a required button, failing when it isn't calibrated.
func (x *ActionExecutor) tapNamed(ctx context.Context, dev *device.Device, coords device.PlatformCoords, platform device.Platform, name string) error {
	pt := pointFor(coords, name)
	if pt == nil {
		return fmt.Errorf("%w: %s %s", ErrCoordinatesNotConfigured, platform, name)
	}
	return x.tap(ctx, dev, *pt, name)
}

func (x *ActionExecutor) tap(ctx context.Context, dev *device.Device, pt device.Point, name string) error {
	w, h := dev.EffectiveSize()
	px, py := pt.Pixels(w, h)
	x.logger.Debug("tap", "device", dev.ID, "button", name, "x", px, "y", py)
	if err := x.actuator.Tap(ctx, dev.ID, px, py); err != nil {
		return fmt.Errorf("tapping %s: %w", name, err)
	}
	return nil
}

func (x *ActionExecutor) wait(ctx context.Context, d Delay) error {
	return x.sleep(ctx, x.timing.RandomDelay(d.Base, d.Variance))
}

// comment opens the comment sheet, types a random template, sends it and
// returns to the feed. Once the send tap has gone out the action counts
// as successful even if dismissing the sheet fails.
func (x *ActionExecutor) comment(ctx context.Context, dev *device.Device, coords device.PlatformCoords, platform device.Platform, trigger *Trigger) error {
	open := pointFor(coords, "comment")
	if open == nil {
		return fmt.Errorf("%w: %s comment", ErrCoordinatesNotConfigured, platform)
	}
	if trigger == nil || len(trigger.CommentTemplates) == 0 {
		x.logger.Warn("comment skipped: trigger has no templates", "device", dev.ID)
		return ErrNoCommentTemplates
	}
	text := trigger.CommentTemplates[x.timing.Index(len(trigger.CommentTemplates))]

	if err := x.tap(ctx, dev, *open, "comment"); err != nil {
		return err
	}
	if err := x.wait(ctx, x.pacing.CommentOpen); err != nil {
		return err
	}

	if input := coords.CommentInput(); input != nil {
		if err := x.tap(ctx, dev, *input, "comment_input"); err != nil {
			return err
		}
		if err := x.wait(ctx, x.pacing.InputFocus); err != nil {
			return err
		}
	}

	x.logger.Info("typing comment", "device", dev.ID, "text", text)
	if err := x.actuator.TypeText(ctx, dev.ID, text); err != nil {
		return fmt.Errorf("typing comment: %w", err)
	}
	if err := x.wait(ctx, x.pacing.ReadingPause); err != nil {
		return err
	}

	if send := coords.CommentSend(); send != nil {
		if err := x.tap(ctx, dev, *send, "comment_send"); err != nil {
			return err
		}
	}

	// The comment is out; nothing past this point fails the action.
	if err := x.wait(ctx, x.pacing.PostSettle); err != nil {
		return nil //nolint:nilerr // Cancelled after sending; the comment stands
	}
	if closeBtn := coords.CommentClose(); closeBtn != nil {
		if err := x.tap(ctx, dev, *closeBtn, "comment_close"); err != nil {
			x.logger.Warn("could not close comment sheet", "device", dev.ID, "error", err)
		}
	}
	_ = x.wait(ctx, x.pacing.CloseTransition) //nolint:errcheck // Same as above

	return nil
}
