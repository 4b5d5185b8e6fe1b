// Package discovery locates robots on the local network.
//
// Robots answer a fixed UDP probe on port 5678 with a JSON description of
// themselves. A sweep broadcasts the probe from every up IPv4 interface
// once per second for a few seconds and collects the replies, one Robot per
// id. Probe sends the same request to a single address, which the session
// manager uses to tell "robot moved" apart from "robot refused us".
//
// Every socket opened by a sweep or probe is closed before the call
// returns, including on context cancellation.
//
// Usage:
//
//	d := discovery.New(discovery.FromConfig(cfg.Discovery))
//	robots, err := d.Sweep(ctx)
//	for _, r := range robots {
//	    fmt.Println(r.ID, r.Address)
//	}
package discovery
