package device

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(NewSQLiteRepository(setupTestDB(t)))
	if err := r.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	return r
}

func TestRegistry_GetDeviceReturnsCopy(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if err := r.SaveDevice(ctx, testDevice("a", "Alpha")); err != nil {
		t.Fatalf("SaveDevice() error = %v", err)
	}

	d, err := r.GetDevice(ctx, "a")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	d.Label = "mutated"
	d.Coords.TikTok.LikeButton.XNorm = 0

	again, _ := r.GetDevice(ctx, "a") //nolint:errcheck // Checked above
	if again.Label != "Alpha" || again.Coords.TikTok.LikeButton.XNorm == 0 {
		t.Error("caller mutation leaked into the cache")
	}
}

func TestRegistry_GetDevice_NotFound(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.GetDevice(context.Background(), "nope")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDevice() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_SaveDevice_Validates(t *testing.T) {
	r := newTestRegistry(t)

	err := r.SaveDevice(context.Background(), &Device{ID: "a"})
	if !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("SaveDevice(no label) error = %v, want ErrInvalidDevice", err)
	}
	if r.GetDeviceCount() != 0 {
		t.Error("invalid device should not be cached")
	}
}

func TestRegistry_SetCoordinate_LeavesOthersAlone(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	if err := r.SaveDevice(ctx, testDevice("a", "Alpha")); err != nil {
		t.Fatalf("SaveDevice() error = %v", err)
	}

	d, err := r.SetCoordinate(ctx, "a", PlatformInstagram, "like", Point{0.1, 0.2})
	if err != nil {
		t.Fatalf("SetCoordinate() error = %v", err)
	}
	if !d.HasLike(PlatformTikTok) || !d.HasLike(PlatformInstagram) {
		t.Error("both platforms should now have a like coordinate")
	}

	// Persisted, not just cached.
	if err := r.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	got, _ := r.GetDevice(ctx, "a") //nolint:errcheck // Present
	if ig := got.PlatformCoords(PlatformInstagram); ig == nil || *ig.Like() != (Point{0.1, 0.2}) {
		t.Errorf("instagram like after reload = %+v", got.Coords.Instagram)
	}
}

func TestRegistry_SetCoordinateFromPixels(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	if err := r.SaveDevice(ctx, testDevice("a", "Alpha")); err != nil {
		t.Fatalf("SaveDevice() error = %v", err)
	}

	// Effective size is the 1170x2532 touch resolution.
	d, err := r.SetCoordinateFromPixels(ctx, "a", PlatformTikTok, "comment", 585, 5000)
	if err != nil {
		t.Fatalf("SetCoordinateFromPixels() error = %v", err)
	}
	got := *d.Coords.TikTok.CommentButton
	if got.XNorm != 0.5 || got.YNorm != 1 {
		t.Errorf("comment = %+v, want {0.5 1} (y clamped)", got)
	}

	if err := r.SaveDevice(ctx, &Device{ID: "blank", Label: "No size"}); err != nil {
		t.Fatalf("SaveDevice() error = %v", err)
	}
	_, err = r.SetCoordinateFromPixels(ctx, "blank", PlatformTikTok, "like", 10, 10)
	if !errors.Is(err, ErrNoDimensions) {
		t.Errorf("error = %v, want ErrNoDimensions", err)
	}
}

func TestRegistry_SetLabel(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	if err := r.SaveDevice(ctx, testDevice("a", "Alpha")); err != nil {
		t.Fatalf("SaveDevice() error = %v", err)
	}

	if _, err := r.SetLabel(ctx, "a", "  "); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("SetLabel(blank) error = %v, want ErrInvalidDevice", err)
	}
	d, err := r.SetLabel(ctx, "a", "Desk phone")
	if err != nil || d.Label != "Desk phone" {
		t.Errorf("SetLabel() = %v, %v", d, err)
	}
}

func TestRegistry_Merge(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	known := testDevice("a", "My label")
	if err := r.SaveDevice(ctx, known); err != nil {
		t.Fatalf("SaveDevice() error = %v", err)
	}
	if err := r.SaveDevice(ctx, testDevice("gone", "Unplugged")); err != nil {
		t.Fatalf("SaveDevice() error = %v", err)
	}

	res, err := r.Merge(ctx, []Discovered{
		{ID: "a", Name: "iPhone (bridge name)", Width: 430, Height: 932, State: "1"},
		{ID: "b", Width: 390, Height: 844},
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res != (MergeResult{Added: 1, Updated: 1, Offline: 1}) {
		t.Errorf("Merge() = %+v", res)
	}

	a, _ := r.GetDevice(ctx, "a") //nolint:errcheck // Present
	if a.Label != "My label" {
		t.Errorf("known label overwritten: %q", a.Label)
	}
	if !a.HasLike(PlatformTikTok) {
		t.Error("known coordinates dropped by merge")
	}
	if a.Width != 430 || a.State != "1" {
		t.Errorf("bridge fields not refreshed: %+v", a)
	}

	b, _ := r.GetDevice(ctx, "b") //nolint:errcheck // Present
	if b.Label != "Device b" {
		t.Errorf("new device label = %q, want fallback", b.Label)
	}

	gone, _ := r.GetDevice(ctx, "gone") //nolint:errcheck // Present
	if gone.State != StateOffline || !gone.HasLike(PlatformTikTok) {
		t.Errorf("missing device = %+v, want offline with coords kept", gone)
	}
}

func TestRegistry_GetStats(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	_ = r.SaveDevice(ctx, testDevice("a", "Alpha"))                //nolint:errcheck // Valid fixture
	_ = r.SaveDevice(ctx, &Device{ID: "b", Label: "Uncalibrated"}) //nolint:errcheck // Valid fixture

	stats := r.GetStats()
	if stats.TotalDevices != 2 {
		t.Errorf("TotalDevices = %d, want 2", stats.TotalDevices)
	}
	if stats.Calibrated[PlatformTikTok] != 1 || stats.Calibrated[PlatformInstagram] != 0 {
		t.Errorf("Calibrated = %v", stats.Calibrated)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	if err := r.SaveDevice(ctx, testDevice("a", "Alpha")); err != nil {
		t.Fatalf("SaveDevice() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.GetDevice(ctx, "a") //nolint:errcheck // Racing reads
		}()
		go func() {
			defer wg.Done()
			_, _ = r.SetCoordinate(ctx, "a", PlatformTikTok, "save", Point{0.9, 0.7}) //nolint:errcheck // Racing writes
		}()
	}
	wg.Wait()
}
