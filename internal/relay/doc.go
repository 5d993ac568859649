// Package relay forwards binary audio frames between the active speaker
// and the rest of a debate room. Frames pass through unmodified, bounded
// in size, with no server-side buffering or reassembly; ordering is
// whatever a single speaker's connection delivers.
//
// The relay sits beside the textual pipeline, not in it: frames never
// enter the session command queue. The only session state it consults is
// an injected Gate that says whether a sender may stream right now.
//
// # Wire Format
//
// Inbound frames carry a flags byte and raw payload:
//
//	[1-byte flags][payload]
//
// Outbound frames prefix the speaker so listeners can demux, plus a
// sequence number so they can spot gaps:
//
//	[1-byte speaker-id length][speaker-id][1-byte flags][4-byte big-endian seq][payload]
//
// Flag bit 0 marks the speaker's final chunk. Sequence numbers count
// from 1 within one speaker's run and are server-assigned. When the
// active speaker changes, the relay emits an empty final frame for the
// previous speaker before forwarding the new one, so players flush the
// old stream instead of mixing the two.
package relay
