// Package protocol defines the wire format shared by the remcon controller
// and its agents.
//
// Every unit of wire data is a Message: a versioned envelope carrying a
// stable kind tag, a unique ID, an optional Ref (the ID of the request a
// response answers) and a typed payload record. One Message travels in one
// length-prefixed binary frame; EncodeFrame and DecodeFrame convert between
// the two.
//
// Unknown payload fields are ignored on decode (forward compatibility) and
// an unknown kind tag yields a *DecodeError, never a panic, so a single bad
// frame cannot take down a connection.
package protocol
