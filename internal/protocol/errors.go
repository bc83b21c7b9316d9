package protocol

import (
	"errors"
	"fmt"
)

// Error kind sentinels, wrapped with fmt.Errorf("...: %w", KindX) at the
// call site so callers can classify a failure with errors.Is while
// still getting a human-readable message.
var (
	// ErrValidation: malformed proposal, failed signature, bet violates
	// phase rules. Recovered locally: drop the message, round continues.
	ErrValidation = errors.New("validation error")

	// ErrProtocol: invariant violation implying peer misbehavior
	// (equivocation, quorum inconsistency). Recovered by isolating the
	// offending peer.
	ErrProtocol = errors.New("protocol error")

	// ErrResource: bounded queue overflow, disk full on checkpoint.
	ErrResource = errors.New("resource error")

	// ErrCryptoFatal: OS entropy unavailable, key store corrupted.
	// Fatal; the process MUST NOT invent randomness.
	ErrCryptoFatal = errors.New("crypto fatal error")

	// ErrConsensusStall: no quorum within the view-change timeout. Not
	// surfaced as an application error; recovered via view change.
	ErrConsensusStall = errors.New("consensus stall")

	// ErrLedger: overflow or insufficient funds. Wraps ErrValidation so
	// callers that only check for validation failures still catch a
	// ledger error, matching the rule that it is always treated as
	// ErrValidation on the proposal that triggered it.
	ErrLedger = fmt.Errorf("%w: ledger error", ErrValidation)
)
