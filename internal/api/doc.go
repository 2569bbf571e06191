// Package api implements the optional HTTP server of the NLU bridge.
//
// Endpoints:
//   - GET  /health and /api/v1/health: liveness, 503 while the broker is down
//   - GET  /metrics: Prometheus exposition of the bridge collectors
//   - GET  /api/v1/status: connection, site filter, graph and counters
//   - POST /api/v1/train: queue a training run from sentences or a graph file
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// There is no authentication; bind it to a trusted interface.
package api
