// Package telemetry turns session events into metrics.
//
// Metrics exposes Prometheus collectors for connection state, battery,
// bin and tank levels, connect failures, and discovery sweeps. InfluxSink
// records the same events as InfluxDB points. Both consume a coordinator
// subscription through Run:
//
//	events, unsubscribe := coord.Subscribe(256)
//	defer unsubscribe()
//	go telemetry.Run(ctx, events, metrics, sink)
package telemetry
