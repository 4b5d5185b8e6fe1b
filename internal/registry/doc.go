// Package registry owns every robot session in the process.
//
// A Coordinator creates one session.Session per configured robot, starts
// them, and fans their events out to subscribers (the API, the MQTT bridge,
// telemetry). It also keeps what outlives a connection: each robot's
// last-known address, its saved favorite jobs, and the last status it
// reported, in a Store backed by SQLite or Redis.
//
// Usage:
//
//	store, err := registry.OpenStore(ctx, cfg)
//	coord := registry.NewCoordinator(store, discoverer, registry.WithLogger(log))
//	coord.AddFromConfig(cfg.Robots)
//	events, unsubscribe := coord.Subscribe(64)
//	coord.Start(ctx)
//	defer coord.Close()
package registry
