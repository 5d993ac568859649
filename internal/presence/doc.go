// Package presence tracks which connections are attached to each debate
// room. Presence is ephemeral and separate from membership: the roster
// says who may speak, presence says who is online right now. A
// disconnect never mutates the session document.
//
// Each Join and Leave returns a Change describing what is worth
// broadcasting: a roster participant coming online with their first
// connection, going offline with their last, or the observer count
// moving. Multiple tabs from one participant collapse into a single
// online presence.
package presence
