// Package http serves the read-only browser API over the canonical store and
// the run ledger. Routing uses chi; responses and errors are rendered with
// go-chi/render.
package http
