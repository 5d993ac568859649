// Package router is the single ingress for client events. Transports
// decode frames and hand the typed payloads here; the router binds
// connections to sessions, dispatches mutations to the session
// registry, relays audio, and answers rejections to the originator
// only. Accepted mutations are never answered directly: their effects
// come back through the room's event stream like they do for everyone
// else, so every subscriber observes the same sequence.
package router
