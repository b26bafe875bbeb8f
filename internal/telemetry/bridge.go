package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/otg-controller/internal/audit"
	"github.com/nerrad567/otg-controller/internal/automation"
	"github.com/nerrad567/otg-controller/internal/infrastructure/influxdb"
	"github.com/nerrad567/otg-controller/internal/infrastructure/mqtt"
)

const (
	// commandTimeout bounds a single Start/Stop issued over MQTT.
	commandTimeout = 30 * time.Second

	// configLookupTimeout bounds the platform lookup on a status change.
	configLookupTimeout = 2 * time.Second
)

// Controller is the part of the automation engine the bridge drives.
// It is satisfied by *automation.Engine.
type Controller interface {
	Start(ctx context.Context) automation.StartResult
	Stop(ctx context.Context) automation.Result
	EmergencyStop(ctx context.Context)
	Stats() automation.Stats
	OnCycleComplete(fn func(automation.CycleResult))
	OnStatusChange(fn func(automation.Status))
}

// MQTTClient is the interface for MQTT operations.
// It is satisfied by *mqtt.Client.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// MetricsWriter records automation telemetry.
// It is satisfied by *influxdb.Client.
type MetricsWriter interface {
	WriteCycle(m influxdb.CycleMetric)
	WriteEngineStatus(status string, cycleCount int)
}

// ConfigReader supplies the configured platform for metric tags.
type ConfigReader interface {
	LoadConfig(ctx context.Context) (*automation.Config, error)
}

// AuditRecorder records commands accepted over MQTT.
// It is satisfied by *audit.SQLiteRepository.
type AuditRecorder interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps are the bridge's collaborators. Engine is required; MQTT, Metrics
// and Configs may be nil when that sink is disabled.
type Deps struct {
	Engine  Controller
	MQTT    MQTTClient
	Metrics MetricsWriter
	Configs ConfigReader
	Audit   AuditRecorder
	Topics  mqtt.Topics
	QoS     byte
	Logger  Logger
}

// Bridge fans engine events out to MQTT and InfluxDB and turns MQTT
// command messages into engine calls.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	engine  Controller
	mqtt    MQTTClient
	metrics MetricsWriter
	configs ConfigReader
	audit   AuditRecorder
	topics  mqtt.Topics
	qos     byte
	logger  Logger
	now     func() time.Time

	mu       sync.RWMutex
	ctx      context.Context
	platform string
	started  bool
}

// New creates a bridge. Call Start to attach it to the engine.
func New(deps Deps) *Bridge {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	topics := deps.Topics
	if topics.Prefix == "" {
		topics = mqtt.NewTopics("")
	}
	return &Bridge{
		engine:  deps.Engine,
		mqtt:    deps.MQTT,
		metrics: deps.Metrics,
		configs: deps.Configs,
		audit:   deps.Audit,
		topics:  topics,
		qos:     deps.QoS,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		ctx:     context.Background(),
	}
}

// Start registers the engine callbacks, subscribes to the command topics
// and publishes the current engine status. Calling Start twice is a no-op.
//
// Parameters:
//   - ctx: Parent context for commands received over MQTT
//
// Returns:
//   - error: If the command subscription fails
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.ctx = ctx
	b.mu.Unlock()

	b.engine.OnCycleComplete(b.handleCycle)
	b.engine.OnStatusChange(b.handleStatus)

	if b.mqtt != nil {
		if err := b.mqtt.Subscribe(b.topics.AllCommands(), b.qos, b.handleCommand); err != nil {
			return fmt.Errorf("subscribing to commands: %w", err)
		}
	}

	b.handleStatus(b.engine.Stats().Status)
	b.logger.Info("telemetry bridge started", "commands", b.topics.AllCommands())
	return nil
}

// ─── Engine Events ──────────────────────────────────────────────────────────

func (b *Bridge) handleCycle(res automation.CycleResult) {
	platform := b.currentPlatform()

	if b.mqtt != nil {
		b.publish(b.topics.Cycles(), CycleMessage{
			Timestamp:   b.now(),
			Platform:    platform,
			CycleResult: res,
		}, false)
	}

	if b.metrics != nil {
		b.metrics.WriteCycle(cycleMetric(res, platform))
	}
}

func (b *Bridge) handleStatus(status automation.Status) {
	if status == automation.StatusRunning {
		b.refreshPlatform()
	}

	count := b.engine.Stats().CycleCount

	if b.mqtt != nil {
		b.publish(b.topics.EngineStatus(), StatusMessage{
			Status:     status,
			CycleCount: count,
			Timestamp:  b.now(),
		}, true)
	}

	if b.metrics != nil {
		b.metrics.WriteEngineStatus(string(status), count)
	}
}

// refreshPlatform caches the configured platform for metric tags.
func (b *Bridge) refreshPlatform() {
	if b.configs == nil {
		return
	}

	ctx, cancel := context.WithTimeout(b.parentContext(), configLookupTimeout)
	defer cancel()

	cfg, err := b.configs.LoadConfig(ctx)
	if err != nil {
		b.logger.Warn("loading automation config for telemetry", "error", err)
		return
	}

	b.mu.Lock()
	b.platform = string(cfg.Platform)
	b.mu.Unlock()
}

func (b *Bridge) currentPlatform() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.platform
}

func (b *Bridge) parentContext() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

// ─── Commands ───────────────────────────────────────────────────────────────

// handleCommand executes a command received on {prefix}/automation/command/{name}
// and publishes the outcome to the matching result topic.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	name := b.topics.CommandName(topic)
	if name == "" {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	var cmd CommandMessage
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			b.publishResult(name, CommandResultMessage{Command: name, Error: "invalid command payload"})
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	}

	b.logger.Info("received automation command", "command", name, "id", cmd.ID, "source", cmd.Source)

	ctx, cancel := context.WithTimeout(b.parentContext(), commandTimeout)
	defer cancel()

	result := CommandResultMessage{CommandID: cmd.ID, Command: name}
	switch name {
	case mqtt.CommandStart:
		res := b.engine.Start(ctx)
		result.Success, result.Error, result.Warnings = res.Success, res.Error, res.Warnings
	case mqtt.CommandStop:
		res := b.engine.Stop(ctx)
		result.Success, result.Error = res.Success, res.Error
	case mqtt.CommandEmergencyStop:
		b.engine.EmergencyStop(ctx)
		result.Success = true
	default:
		result.Error = "unknown command"
		b.publishResult(name, result)
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	if result.Success {
		b.recordCommand(ctx, name, cmd)
	}
	b.publishResult(name, result)
	return nil
}

// recordCommand writes an audit entry for an accepted command.
func (b *Bridge) recordCommand(ctx context.Context, name string, cmd CommandMessage) {
	if b.audit == nil {
		return
	}
	action := map[string]string{
		mqtt.CommandStart:         audit.ActionStart,
		mqtt.CommandStop:          audit.ActionStop,
		mqtt.CommandEmergencyStop: audit.ActionEmergencyStop,
	}[name]
	e := &audit.Entry{
		Action:     action,
		EntityType: audit.EntityAutomation,
		Subject:    cmd.Source,
		Source:     audit.SourceMQTT,
	}
	if cmd.ID != "" {
		e.Details = map[string]any{"command_id": cmd.ID}
	}
	if err := b.audit.Create(ctx, e); err != nil {
		b.logger.Warn("recording command audit failed", "command", name, "error", err)
	}
}

func (b *Bridge) publishResult(name string, msg CommandResultMessage) {
	if b.mqtt == nil {
		return
	}
	msg.Timestamp = b.now()
	b.publish(b.topics.CommandResult(name), msg, false)
}

// publish marshals v and sends it, logging failures. Telemetry never
// blocks or fails the automation loop.
func (b *Bridge) publish(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("encoding telemetry message", "topic", topic, "error", err)
		return
	}
	if err := b.mqtt.Publish(topic, payload, b.qos, retained); err != nil {
		b.logger.Warn("publishing telemetry message", "topic", topic, "error", err)
	}
}

// cycleMetric converts a cycle result into its time-series form.
func cycleMetric(res automation.CycleResult, platform string) influxdb.CycleMetric {
	var duration time.Duration
	if !res.StartedAt.IsZero() && res.CompletedAt.After(res.StartedAt) {
		duration = res.CompletedAt.Sub(res.StartedAt)
	}
	return influxdb.CycleMetric{
		DeviceID: res.DeviceID,
		Platform: platform,
		Action:   string(res.Action),
		Success:  res.Success,
		Matched:  res.MatchCount > 0,
		Skipped:  res.SkippedByHumanization || res.SkippedByProbability,
		Viewing:  res.ViewingPause,
		Duration: duration,
		At:       res.CompletedAt,
	}
}
