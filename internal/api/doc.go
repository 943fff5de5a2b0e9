// Package api implements the HTTP REST API and WebSocket server for the
// item engine.
//
// This package provides:
//   - REST endpoints to list, read, change and fade items
//   - Read-only scene listings
//   - A WebSocket hub that streams item commits and accepts item.set
//   - Prometheus metrics on /metrics
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # WebSocket protocol
//
// Clients subscribe to "item.changed" for every commit or to
// "item:<path>" for one item:
//
//	{"type":"subscribe","id":"1","payload":{"channels":["item:living.light"]}}
//	{"type":"item.set","id":"2","payload":{"path":"living.light","value":true}}
//
// Values set over the socket are attributed "Visu:ws:<client id>".
package api
