// Package server exposes a KVQuery over HTTP.
//
// Endpoints:
//
//	POST /v1/query   {"query": "(A - B) | C", "type": "string" | "uint32"}
//	POST /v1/lookup  {"keys": ["k1", "k2"], "type": "value" | "string" | "uint32"}
//	GET  /healthz
//	GET  /metrics    when a Prometheus gatherer is configured
package server
