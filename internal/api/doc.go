// Package api implements the HTTP REST API and WebSocket server for robotlan.
//
// This package provides:
//   - REST endpoints for robot state, commands, options, and favorite jobs
//   - An activity log of actions taken through the API (SQLite store only)
//   - WebSocket hub broadcasting session events
//   - Prometheus metrics on /metrics
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The server sits between host applications and the registry coordinator.
// Commands go straight to the robot's session; session events are relayed
// to WebSocket clients subscribed to robot.connection, robot.status, or
// robot.unexpected. A subscribe request may also list robot ids to narrow
// delivery:
//
//	{"type": "subscribe", "id": "1", "payload": {"channels": ["robot.status"], "robots": ["3145C61042726780"]}}
//
// POST /robots/{id}/control/{target} sends whichever command moves the robot
// towards a status name such as clean or dockManually.
//
// # Errors
//
// Failures are returned as {"status", "code", "message"}. A command sent to
// a robot that is not connected answers 409 with code not_connected.
package api
