/*
Package feature implements the controller-side handlers for the remote
administration features: process management, memory dumps, screen previews
and shell execution.

Each handler instance serves one feature on one session. Handlers plug into
the dispatch router, send commands through a narrow Sender interface, and
surface inbound results either as correlated request/response pairs or as
events via subscribe functions. The Attach helpers wrap the router's
get-or-create registration so callers always reach the session's single
handler instance.
*/
package feature
