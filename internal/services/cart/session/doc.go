// Package session serializes mutations of shared shopping sessions.
//
// A Registry holds live sessions keyed by normalized id. An Actor applies
// join, item, budget and leave operations to one session at a time under
// that session's lock and hands the resulting events to a Publisher before
// releasing it, so every participant sees one session's events in the order
// the mutations were accepted. Different sessions never contend.
//
// Lock order is session, then registry, then publisher. Publishers must not
// block.
package session
