// Package errors provides standardized error definitions for the remcon system.
// All error definitions are centralized here to ensure consistency across
// the controller and agent components.
package errors
