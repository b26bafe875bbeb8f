package automation

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

func TestTimingPolicy_Jitter(t *testing.T) {
	tests := []struct {
		name string
		draw float64
		base time.Duration
		min  float64
		max  float64
		want time.Duration
	}{
		{"low end", 0, 10 * time.Second, 0.8, 1.2, 8 * time.Second},
		{"midpoint", 0.5, 10 * time.Second, 0.8, 1.2, 10 * time.Second},
		{"rounds to ms", 0.5, 1001 * time.Microsecond, 1, 1, time.Millisecond},
		{"fixed multiplier", 0.3, 3 * time.Second, 1, 1, 3 * time.Second},
		{"zero base", 0.9, 0, 0.8, 1.2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewTimingPolicy(fixedRandom(tt.draw))
			if got := p.Jitter(tt.base, tt.min, tt.max); got != tt.want {
				t.Errorf("Jitter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimingPolicy_JitterStaysInRange(t *testing.T) {
	p := NewTimingPolicy(rand.New(rand.NewPCG(1, 2)))
	base := 10 * time.Second
	for i := 0; i < 1000; i++ {
		got := p.Jitter(base, 0.8, 1.2)
		if got < 8*time.Second || got > 12*time.Second {
			t.Fatalf("Jitter() = %v, outside [8s, 12s]", got)
		}
	}
}

func TestTimingPolicy_RandomDelay(t *testing.T) {
	p := NewTimingPolicy(fixedRandom(0.5))
	if got := p.RandomDelay(800*time.Millisecond, 400*time.Millisecond); got != time.Second {
		t.Errorf("RandomDelay() = %v, want 1s", got)
	}

	p = NewTimingPolicy(fixedRandom(0))
	if got := p.RandomDelay(1200*time.Millisecond, 600*time.Millisecond); got != 1200*time.Millisecond {
		t.Errorf("RandomDelay() = %v, want 1.2s", got)
	}
}

func TestTimingPolicy_ShouldSkipAndExecute(t *testing.T) {
	tests := []struct {
		draw float64
		p    float64
		want bool
	}{
		{0.05, 0.1, true},
		{0.1, 0.1, false},
		{0.5, 0, false},
		{0.999, 1, true},
	}

	for _, tt := range tests {
		p := NewTimingPolicy(fixedRandom(tt.draw))
		if got := p.ShouldSkip(tt.p); got != tt.want {
			t.Errorf("ShouldSkip(%v) with draw %v = %v, want %v", tt.p, tt.draw, got, tt.want)
		}
		if got := p.ShouldExecute(tt.p); got != tt.want {
			t.Errorf("ShouldExecute(%v) with draw %v = %v, want %v", tt.p, tt.draw, got, tt.want)
		}
	}
}

// A dance/music LIKE trigger at p=0.5 should fire about half the time.
func TestTimingPolicy_ShouldExecuteFrequency(t *testing.T) {
	trig := Trigger{ID: "t1", Action: ActionLike, Keywords: []string{"dance", "music"}, Probability: probability(0.5)}
	if !Matches(&trig, "a girl dancing to music") {
		t.Fatal("trigger should match the analysis text")
	}

	p := NewTimingPolicy(rand.New(rand.NewPCG(42, 1024)))
	const draws = 10000
	executed := 0
	for i := 0; i < draws; i++ {
		if p.ShouldExecute(trig.Weight()) {
			executed++
		}
	}

	frac := float64(executed) / draws
	if frac < 0.48 || frac > 0.52 {
		t.Errorf("execute fraction = %.4f, want 0.5 ± 0.02", frac)
	}
}

func TestTimingPolicy_ViewingTime(t *testing.T) {
	vt := &ViewingTime{
		Relevant:    SecondsRange{Min: 5, Max: 10},
		NonRelevant: SecondsRange{Min: 1, Max: 3},
	}
	p := NewTimingPolicy(fixedRandom(0.5))

	if got := p.ViewingTime(true, vt); got != 7500*time.Millisecond {
		t.Errorf("ViewingTime(relevant) = %v, want 7.5s", got)
	}
	if got := p.ViewingTime(false, vt); got != 2*time.Second {
		t.Errorf("ViewingTime(non-relevant) = %v, want 2s", got)
	}
	if got := p.ViewingTime(true, nil); got != 0 {
		t.Errorf("ViewingTime(nil) = %v, want 0", got)
	}
	if got := p.ViewingTime(false, &ViewingTime{Relevant: vt.Relevant}); got != 0 {
		t.Errorf("ViewingTime(unset range) = %v, want 0", got)
	}
}

func TestTimingPolicy_Index(t *testing.T) {
	tests := []struct {
		draw float64
		n    int
		want int
	}{
		{0, 3, 0},
		{0.34, 3, 1},
		{0.99, 3, 2},
		{0.9999999999999999, 1, 0},
	}
	for _, tt := range tests {
		p := NewTimingPolicy(fixedRandom(tt.draw))
		if got := p.Index(tt.n); got != tt.want {
			t.Errorf("Index(%d) with draw %v = %d, want %d", tt.n, tt.draw, got, tt.want)
		}
	}
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep(cancelled) error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep(cancelled) did not return promptly")
	}
}
