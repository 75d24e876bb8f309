package ir

import (
	"github.com/pkg/errors"
)

// Sentinel errors for analysis and framework failures. Verifier
// failures are not sentinels: the verifier accumulates human-readable
// diagnostics and folds them into one error.
var (
	// ErrUnreachableBlock is returned by analysis queries on a block
	// that the entry cannot reach.
	ErrUnreachableBlock = errors.New("unreachable block")

	// ErrUnknownPass is returned when a pass name has no registration.
	ErrUnknownPass = errors.New("unknown pass")

	// ErrNotSimplified is returned by loop queries that require
	// simplified form on a loop that is not in it.
	ErrNotSimplified = errors.New("loop not in simplified form")
)
