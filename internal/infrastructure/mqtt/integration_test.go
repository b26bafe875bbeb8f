//go:build integration

package mqtt

import (
	"sync/atomic"
	"testing"
	"time"
)

// Integration tests for reconnection bookkeeping. They need a running
// broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

// TestIntegration_SubscriptionTracking verifies the subscriptions that
// restoreSubscriptions replays after a reconnect.
func TestIntegration_SubscriptionTracking(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "otg-int-sub-track"
	client := connectOrSkip(t, cfg)

	topics := client.Topics()
	patterns := []string{topics.AllCommands(), topics.Cycles(), topics.EngineStatus()}
	for _, p := range patterns {
		if err := client.Subscribe(p, 1, func(string, []byte) error { return nil }); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", p, err)
		}
	}
	if client.SubscriptionCount() != len(patterns) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(patterns))
	}

	// Replaying must not duplicate tracking.
	client.restoreSubscriptions()
	if client.SubscriptionCount() != len(patterns) {
		t.Errorf("SubscriptionCount() after restore = %d", client.SubscriptionCount())
	}
}

// TestIntegration_OnConnectFiresOnReconnect forces a reconnect by dropping
// the paho connection and waits for the callback.
func TestIntegration_OnConnectFiresOnReconnect(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "otg-int-reconnect"
	client := connectOrSkip(t, cfg)

	var connects, disconnects int32
	client.SetOnConnect(func() { atomic.AddInt32(&connects, 1) })
	client.SetOnDisconnect(func(error) { atomic.AddInt32(&disconnects, 1) })

	client.handleDisconnect(nil)
	if client.IsConnected() {
		t.Fatal("IsConnected() = true after handleDisconnect")
	}
	client.handleConnect()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&connects) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if atomic.LoadInt32(&connects) != 1 || atomic.LoadInt32(&disconnects) != 1 {
		t.Errorf("connects=%d disconnects=%d, want 1/1", connects, disconnects)
	}
	if !client.IsConnected() {
		t.Error("IsConnected() = false after handleConnect")
	}
}
