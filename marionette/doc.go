// Package marionette is a minimal client for Firefox's Marionette remote
// protocol.
//
// Messages travel over a plain TCP stream as length-prefixed frames of the
// form "<decimal byte length>:<JSON payload>". On connect the server sends a
// handshake object; after that the client sends [0, id, name, params]
// commands and the server answers each with [1, id, error, result].
package marionette
