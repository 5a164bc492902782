// Package session provides a Redis-backed login session store.
//
// A request carries its session as a [*Handle] in the context. The HTTP
// layer loads the handle with [Store.Load], attaches it with [WithHandle] and
// writes Handle.ID back to the client after the request, since Login and
// InvalidateSession rotate it.
//
// This package does not import tokenauth; the root package adapts [Store] to
// its StatefulGuard contract.
package session
