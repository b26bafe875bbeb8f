// Package automation provides the automation control loop for the OTG
// controller.
//
// The engine walks the selected devices one at a time. For each device a
// cycle scrolls to the next post, captures the screen, asks a classifier
// what the post is about, matches the description against keyword
// triggers and performs the chosen action with human-paced gestures.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                   Engine (engine.go)                     │
//	│  idle ──Start──▶ running ──Stop──▶ stopping ──▶ idle      │
//	│  Round-robin loop, post-interval delay, recent errors    │
//	│        │                                                 │
//	│        ▼                                                 │
//	│  ┌────────────────────────────────────────────────┐      │
//	│  │  CycleExecutor (cycle.go)                      │      │
//	│  │  1. Resolve device      5. Screenshot          │      │
//	│  │  2. Humanization skip   6. Classify            │      │
//	│  │  3. Scroll              7. Match + view pause  │      │
//	│  │  4. Scroll delay        8. Select + act        │      │
//	│  └────────────────────────────────────────────────┘      │
//	│        │                        │                        │
//	│        ▼                        ▼                        │
//	│  ┌──────────────┐       ┌────────────────┐               │
//	│  │   Matcher    │       │ ActionExecutor │               │
//	│  │ (matcher.go) │       │  (actions.go)  │               │
//	│  └──────────────┘       └────────────────┘               │
//	│            TimingPolicy (timing.go)                      │
//	│  ┌──────────────┐    ┌────────────────┐                  │
//	│  │   Registry   │───▶│   Repository   │                  │
//	│  │(registry.go) │    │(repository.go) │                  │
//	│  └──────────────┘    └────────────────┘                  │
//	└──────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Config: The single automation record (platform, devices, timing, triggers)
//   - Trigger: Keywords mapped to an action, with device scope and probability
//   - CycleResult: Immutable record of one pass over one device
//   - Engine: State machine and loop; the only writer of the running flag
//   - Registry: Thread-safe cache of Config wrapping Repository
//
// # Thread Safety
//
// Registry and Engine are safe for concurrent use from multiple goroutines.
// Devices are never driven in parallel.
//
// # Usage
//
//	repo := automation.NewSQLiteRepository(db)
//	registry := automation.NewRegistry(repo, automation.DefaultConfig())
//	registry.SetLogger(log)
//
//	engine := automation.NewEngine(automation.EngineDeps{
//	    Store:      registry,
//	    Devices:    devices,
//	    Actuator:   imouseClient,
//	    Classifier: visionClient,
//	    Logger:     log,
//	})
//	defer engine.Close()
//
//	if res := engine.Start(ctx); !res.Success {
//	    return res.Err
//	}
package automation
