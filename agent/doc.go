// Package agent implements the endpoint side of the protocol: it connects
// to the controller, answers process, dump, preview and shell commands,
// and reports health through periodic heartbeats.
package agent
