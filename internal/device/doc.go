// Package device keeps the catalogue of phones driven through the iMouseXP
// bridge together with their per-platform button calibration.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                       Device Registry                         │
//	│                                                               │
//	│  ┌──────────────────┐   ┌──────────────────┐   ┌───────────┐ │
//	│  │     Registry     │──▶│    Repository    │   │  Coords   │ │
//	│  │  (registry.go)   │   │ (repository.go)  │   │(coords.go)│ │
//	│  │ • cache + copies │   │ • SQLite rows    │   │ • TikTok  │ │
//	│  │ • calibration    │   │ • coords as JSON │   │ • Insta   │ │
//	│  │ • discovery merge│   └──────────────────┘   └───────────┘ │
//	│  └──────────────────┘                                         │
//	└──────────────────────────────────────────────────────────────┘
//	          │                                   ▲
//	          ▼                                   │
//	  automation engine (GetDevice per cycle)   REST API calibration
//
// Coordinates are normalized to [0,1] so one calibration survives a
// resolution change. Gestures are computed against the effective screen
// size: the touch resolution when the bridge reports it, else the logical
// display size.
//
// # Usage
//
//	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
//	registry.SetLogger(log)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//	_, err := registry.SetCoordinate(ctx, "FA:12", device.PlatformTikTok, "like",
//	    device.Point{XNorm: 0.92, YNorm: 0.55})
package device
