// Package api provides the HTTP REST API and WebSocket server for
// SonicLink Core.
//
// It exposes the device directory (create, update, delete entries, each
// change starting or stopping the matching poll loop), the live fleet
// state assembled from the registry, a command endpoint routed through
// the control dispatcher, a Prometheus scrape endpoint, and a WebSocket
// stream of snapshot publishes.
//
// The server follows the same lifecycle pattern as the infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
