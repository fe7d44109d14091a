/*
Package dispatch routes inbound messages to feature handlers and correlates
requests with their responses.

The Router keeps one handler table per session. Registration is
get-or-create: at most one handler instance of a given feature exists per
session, and registering a second one returns the first. Inbound messages
flow through a per-session FIFO queue, so delivery order within a session
always equals arrival order while a slow handler never blocks the
transport read loop. A panicking handler is isolated: the panic is logged
and delivery to other handlers continues.

The Correlator matches an outbound command to the one inbound response that
answers it, keyed by message kind plus a caller-chosen key (a pid, a
request id). Pending requests resolve on response, timeout, cancellation or
session teardown, whichever comes first; a duplicate key supersedes the
older pending request.
*/
package dispatch
