// Package render synchronizes an external playback engine with a host
// graphics surface.
//
// A Surface brings the engine up the first time the host creates a graphics
// context for it, then draws the engine's current frame whenever the host's
// compositor asks. A RefreshDriver reports every display refresh to the
// engine so it can pace frames, and a ResizeController decouples redraw from
// the host run loop while the user drags the window edge.
//
// Everything the engine asks for (new events, new frames) is funneled
// through a single Queue, which is the only ordering mechanism between the
// engine, the refresh timer and resize handling:
//
//	q := render.NewQueue()
//	defer q.Close()
//	bridge := render.NewBridge(player.Factory, log)
//	surface := render.NewSurface(host, bridge, q, render.SurfaceConfig{
//		Options: opts,
//		Target:  path,
//		Logger:  log,
//	})
//	resize := render.NewResizeController(surface)
//
// Once the engine shuts down, every handle the bridge gave out is released
// and every later call through it does nothing.
package render
