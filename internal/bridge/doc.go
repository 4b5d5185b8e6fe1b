// Package bridge relays robot sessions to a host MQTT broker.
//
// Session events are published as JSON:
//
//	robotlan/<id>/connection   retained   connection state
//	robotlan/<id>/status       retained   normalized and derived status
//	robotlan/<id>/unexpected              unrecognised enumerated values
//
// and commands are accepted on:
//
//	robotlan/<id>/command         {"command": "start", "params": {...}}
//	robotlan/<id>/command         {"target": "dockManually"}
//	robotlan/<id>/set/<option>    {"value": true}
//
// The bridge's own availability is the Last Will on robotlan/bridge/status,
// configured when the client connects.
package bridge
