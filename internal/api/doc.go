// Package api provides the HTTP and WebSocket API for the OTG controller.
//
// Routes live under /api/v1:
//
//	GET    /health                       engine, automation and device summary
//	GET    /metrics                      runtime and component statistics
//	GET    /ws                           WebSocket (ticket required when auth is on)
//	POST   /auth/ws-ticket               single-use WebSocket ticket
//	GET    /audit                        operator actions, newest first
//	GET    /automation                   settings and triggers
//	PUT    /automation                   partial settings update
//	GET    /automation/stats             engine snapshot
//	GET    /automation/cycles?limit=N    recent cycle results
//	POST   /automation/start             start the engine
//	POST   /automation/stop              stop after the current device
//	POST   /automation/emergency-stop    force the engine idle
//	*      /automation/triggers[/{id}]   trigger CRUD
//	GET    /devices[?platform=]          devices, optionally calibrated for a platform
//	POST   /devices/sync                 merge the actuation bridge's device list
//	GET    /devices/{id}                 one device
//	PATCH  /devices/{id}                 rename
//	PUT    /devices/{id}/coords          calibrate a button
//	GET    /devices/{id}/screenshot      current screen as a data URL
//	DELETE /devices/{id}                 remove
//
// # Authentication
//
// When security.jwt.secret is set, protected routes require an HS256 bearer
// token minted by IssueToken (or `otgctl token`). With no secret the API is
// open, which is only appropriate on a trusted LAN.
//
// # WebSocket
//
// Clients subscribe to channels with
//
//	{"type":"subscribe","payload":{"channels":["cycle.completed","engine.status"]}}
//
// and receive one event per completed cycle and per engine state change.
package api
