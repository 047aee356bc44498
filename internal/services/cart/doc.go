// Package cart implements collaborative shopping sessions shared over WebSocket.
//
// Sessions live in memory only. The session package serializes every mutation
// per session, broadcast fans the resulting events out to member connections,
// and app exposes them alongside a read-only HTTP directory and product catalog.
package cart
