// Package session keeps one robot connected.
//
// A Session owns the robot's transport, shadow document, normalized status
// and connection state. It connects to the last-known address, falls back
// to a point-to-point probe and a discovery sweep when that fails, validates
// the product family before reporting Connected, and reconnects on its own
// after a disconnect (1s) or a failed attempt (30s).
//
// Callers observe a session through its Events channel and through
// snapshot queries (State, Status, Snapshot). Nothing a caller holds can
// mutate session state.
//
// Timers:
//   - settle: starts on the first report after connect; classification is
//     suppressed until it fires, and later reports do not restart it
//   - debounce: restarted on every classification; only the last status
//     in a window is emitted
//   - reconnect: armed after a failure or disconnect
//
// Each timer is single-slot: arming it cancels the pending one.
//
// Usage:
//
//	s := session.New(identity, session.MQTTDialer{}, finder, store,
//	    session.WithLogger(logger.ForRobot(identity.ID)))
//	s.Start(ctx)
//	defer s.Close()
//	for ev := range s.Events() {
//	    switch e := ev.(type) {
//	    case session.ConnectionChanged:
//	        fmt.Println(e.State.Message)
//	    case session.StatusChanged:
//	        fmt.Println(e.Status.BatteryPercent)
//	    }
//	}
package session
