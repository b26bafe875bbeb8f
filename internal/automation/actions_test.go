package automation

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/otg-controller/internal/device"
)

// ─── Helper ─────────────────────────────────────────────────────────────────

func setupActions(t *testing.T, draw float64) (*ActionExecutor, *mockActuator, *sleepRecorder) {
	t.Helper()
	act := newMockActuator()
	rec := &sleepRecorder{}
	x := NewActionExecutor(act, NewTimingPolicy(fixedRandom(draw)), rec.Sleep, DefaultActionPacing(), nil)
	return x, act, rec
}

func commentTrigger(templates ...string) *Trigger {
	return &Trigger{ID: "c1", Action: ActionComment, Keywords: []string{"music"}, CommentTemplates: templates}
}

// ─── Single taps ────────────────────────────────────────────────────────────

func TestActionExecutor_SingleTaps(t *testing.T) {
	tests := []struct {
		name     string
		platform device.Platform
		action   ActionKind
		wantX    int
		wantY    int
	}{
		{"tiktok like", device.PlatformTikTok, ActionLike, 900, 1000},
		{"tiktok save", device.PlatformTikTok, ActionSave, 900, 1400},
		{"tiktok share uses save", device.PlatformTikTok, ActionShare, 900, 1400},
		{"instagram like", device.PlatformInstagram, ActionLike, 800, 1000},
		{"instagram share", device.PlatformInstagram, ActionShare, 800, 1600},
		{"instagram save uses share", device.PlatformInstagram, ActionSave, 800, 1600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, act, _ := setupActions(t, 0)
			dev := calibratedDevice("p1", "Phone 1")

			if err := x.Execute(context.Background(), &dev, tt.platform, tt.action, nil); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			calls := act.getCalls()
			if len(calls) != 1 || calls[0].Kind != "tap" {
				t.Fatalf("calls = %+v, want one tap", calls)
			}
			if calls[0].X != tt.wantX || calls[0].Y != tt.wantY {
				t.Errorf("tap at (%d,%d), want (%d,%d)", calls[0].X, calls[0].Y, tt.wantX, tt.wantY)
			}
			if calls[0].Device != "p1" {
				t.Errorf("tap device = %q, want p1", calls[0].Device)
			}
		})
	}
}

func TestActionExecutor_UsesLogicalSizeWithoutScreenSize(t *testing.T) {
	x, act, _ := setupActions(t, 0)
	dev := calibratedDevice("p1", "Phone 1")
	dev.ScreenWidth, dev.ScreenHeight = 0, 0

	if err := x.Execute(context.Background(), &dev, device.PlatformTikTok, ActionLike, nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	calls := act.getCalls()
	if calls[0].X != 450 || calls[0].Y != 500 {
		t.Errorf("tap at (%d,%d), want (450,500)", calls[0].X, calls[0].Y)
	}
}

func TestActionExecutor_MissingCoordinate(t *testing.T) {
	tests := []struct {
		name   string
		dev    device.Device
		action ActionKind
	}{
		{"never calibrated", uncalibratedDevice("p1", "Bare"), ActionLike},
		{"no save button", func() device.Device {
			d := calibratedDevice("p1", "Phone 1")
			d.Coords.TikTok.SaveButton = nil
			return d
		}(), ActionSave},
		{"no comment button", func() device.Device {
			d := calibratedDevice("p1", "Phone 1")
			d.Coords.TikTok.CommentButton = nil
			return d
		}(), ActionComment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, act, _ := setupActions(t, 0)
			err := x.Execute(context.Background(), &tt.dev, device.PlatformTikTok, tt.action, commentTrigger("nice"))
			if !errors.Is(err, ErrCoordinatesNotConfigured) {
				t.Fatalf("Execute() error = %v, want ErrCoordinatesNotConfigured", err)
			}
			if !strings.Contains(err.Error(), "tiktok") {
				t.Errorf("error %q should name the platform", err)
			}
			if n := len(act.getCalls()); n != 0 {
				t.Errorf("made %d gestures, want 0", n)
			}
		})
	}
}

// ─── Combos ─────────────────────────────────────────────────────────────────

func TestActionExecutor_LikeAndSave(t *testing.T) {
	x, act, rec := setupActions(t, 0)
	dev := calibratedDevice("p1", "Phone 1")

	if err := x.Execute(context.Background(), &dev, device.PlatformTikTok, ActionLikeAndSave, nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	calls := act.getCalls()
	if len(calls) != 2 {
		t.Fatalf("calls = %+v, want 2 taps", calls)
	}
	if calls[0].Y != 1000 || calls[1].Y != 1400 {
		t.Errorf("taps at y=%d,%d, want like then save", calls[0].Y, calls[1].Y)
	}
	if waits := rec.getWaits(); !reflect.DeepEqual(waits, []time.Duration{500 * time.Millisecond}) {
		t.Errorf("waits = %v, want [500ms]", waits)
	}
}

func TestActionExecutor_LikeFailureShortCircuits(t *testing.T) {
	for _, action := range []ActionKind{ActionLikeAndSave, ActionLikeAndComment} {
		t.Run(string(action), func(t *testing.T) {
			x, act, rec := setupActions(t, 0)
			act.failTap = map[int]error{0: errTapFailed}
			dev := calibratedDevice("p1", "Phone 1")

			err := x.Execute(context.Background(), &dev, device.PlatformTikTok, action, commentTrigger("nice"))
			if !errors.Is(err, errTapFailed) {
				t.Fatalf("Execute() error = %v, want the like tap failure", err)
			}
			if kinds := act.kinds(); !reflect.DeepEqual(kinds, []string{"tap"}) {
				t.Errorf("gestures = %v, want only the like tap", kinds)
			}
			if n := len(rec.getWaits()); n != 0 {
				t.Errorf("waited %d times after a failed like", n)
			}
		})
	}
}

// ─── Comment ────────────────────────────────────────────────────────────────

func TestActionExecutor_CommentSequence(t *testing.T) {
	x, act, rec := setupActions(t, 0)
	dev := calibratedDevice("p1", "Phone 1")

	err := x.Execute(context.Background(), &dev, device.PlatformTikTok, ActionComment, commentTrigger("so good", "love it"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []gesture{
		{Kind: "tap", Device: "p1", X: 900, Y: 1200},  // comment
		{Kind: "tap", Device: "p1", X: 500, Y: 1800},  // input
		{Kind: "type", Device: "p1", Text: "so good"}, // draw 0 picks the first
		{Kind: "tap", Device: "p1", X: 900, Y: 1800},  // send
		{Kind: "tap", Device: "p1", X: 900, Y: 200},   // close
	}
	if got := act.getCalls(); !reflect.DeepEqual(got, want) {
		t.Errorf("gestures =\n%+v\nwant\n%+v", got, want)
	}

	wantWaits := []time.Duration{
		800 * time.Millisecond,  // sheet opens
		300 * time.Millisecond,  // keyboard focus
		300 * time.Millisecond,  // reading pause
		1200 * time.Millisecond, // post settles
		500 * time.Millisecond,  // back to feed
	}
	if got := rec.getWaits(); !reflect.DeepEqual(got, wantWaits) {
		t.Errorf("waits = %v, want %v", got, wantWaits)
	}
}

func TestActionExecutor_CommentPicksTemplate(t *testing.T) {
	x, act, _ := setupActions(t, 0.99)
	dev := calibratedDevice("p1", "Phone 1")

	err := x.Execute(context.Background(), &dev, device.PlatformTikTok, ActionComment, commentTrigger("one", "two", "three"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, c := range act.getCalls() {
		if c.Kind == "type" && c.Text != "three" {
			t.Errorf("typed %q, want three", c.Text)
		}
	}
}

func TestActionExecutor_CommentInstagramBack(t *testing.T) {
	x, act, _ := setupActions(t, 0)
	dev := calibratedDevice("p1", "Phone 1")

	if err := x.Execute(context.Background(), &dev, device.PlatformInstagram, ActionComment, commentTrigger("wow")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	calls := act.getCalls()
	last := calls[len(calls)-1]
	if last.X != 50 || last.Y != 100 {
		t.Errorf("last tap at (%d,%d), want the back button (50,100)", last.X, last.Y)
	}
}

func TestActionExecutor_CommentOptionalSteps(t *testing.T) {
	x, act, _ := setupActions(t, 0)
	dev := calibratedDevice("p1", "Phone 1")
	dev.Coords.TikTok.CommentInputField = nil
	dev.Coords.TikTok.CommentSendButton = nil
	dev.Coords.TikTok.CommentCloseButton = nil

	if err := x.Execute(context.Background(), &dev, device.PlatformTikTok, ActionComment, commentTrigger("hi")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if kinds := act.kinds(); !reflect.DeepEqual(kinds, []string{"tap", "type"}) {
		t.Errorf("gestures = %v, want [tap type]", kinds)
	}
}

func TestActionExecutor_CommentNoTemplates(t *testing.T) {
	x, act, _ := setupActions(t, 0)
	dev := calibratedDevice("p1", "Phone 1")

	for _, trig := range []*Trigger{nil, commentTrigger()} {
		err := x.Execute(context.Background(), &dev, device.PlatformTikTok, ActionComment, trig)
		if !errors.Is(err, ErrNoCommentTemplates) {
			t.Errorf("Execute() error = %v, want ErrNoCommentTemplates", err)
		}
	}
	if n := len(act.getCalls()); n != 0 {
		t.Errorf("made %d gestures without templates", n)
	}
}

func TestActionExecutor_CommentFailures(t *testing.T) {
	tests := []struct {
		name    string
		failTap map[int]error
		typeErr error
		wantErr bool
	}{
		{"comment button fails", map[int]error{0: errTapFailed}, nil, true},
		{"input fails", map[int]error{1: errTapFailed}, nil, true},
		{"typing fails", nil, errors.New("keyboard gone"), true},
		{"send fails", map[int]error{2: errTapFailed}, nil, true},
		{"close fails after send", map[int]error{3: errTapFailed}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, act, _ := setupActions(t, 0)
			act.failTap = tt.failTap
			act.typeErr = tt.typeErr
			dev := calibratedDevice("p1", "Phone 1")

			err := x.Execute(context.Background(), &dev, device.PlatformTikTok, ActionComment, commentTrigger("hey"))
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// ─── No-op and unknown ──────────────────────────────────────────────────────

func TestActionExecutor_NoInteraction(t *testing.T) {
	for _, action := range []ActionKind{ActionNoAction, ActionSkip} {
		x, act, _ := setupActions(t, 0)
		dev := uncalibratedDevice("p1", "Bare")
		if err := x.Execute(context.Background(), &dev, device.PlatformTikTok, action, nil); err != nil {
			t.Errorf("Execute(%s) error = %v", action, err)
		}
		if n := len(act.getCalls()); n != 0 {
			t.Errorf("Execute(%s) made %d gestures", action, n)
		}
	}
}

func TestActionExecutor_UnknownAction(t *testing.T) {
	x, _, _ := setupActions(t, 0)
	dev := calibratedDevice("p1", "Phone 1")

	err := x.Execute(context.Background(), &dev, device.PlatformTikTok, ActionKind("DOUBLE_TAP"), nil)
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("Execute() error = %v, want ErrUnknownAction", err)
	}
	if !strings.Contains(err.Error(), "DOUBLE_TAP") {
		t.Errorf("error %q should name the action", err)
	}
}
