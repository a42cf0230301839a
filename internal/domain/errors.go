package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors, compared with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Goal errors
var (
	// ErrGoalNotFound is returned when no goal matches the given id.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrGoalNotActive is returned when a position is taken on a goal that is
	// no longer in GoalStatusActive.
	ErrGoalNotActive = errors.New("goal is not active")

	// ErrDeadlinePassed is returned when a position is attempted at or after
	// the goal deadline.
	ErrDeadlinePassed = errors.New("goal deadline has passed")

	// ErrInvalidState is returned when a goal transition is not allowed from
	// its current status.
	ErrInvalidState = errors.New("goal is not in a state that allows this action")

	// ErrProofNotSubmitted is returned when a vote is cast before the creator
	// submitted proof.
	ErrProofNotSubmitted = errors.New("no proof submitted yet")

	// ErrGoalNotResolved is returned when a claim is attempted on a goal that
	// is neither achieved nor failed.
	ErrGoalNotResolved = errors.New("goal is not resolved")

	ErrTitleRequired   = errors.New("goal title is required")
	ErrInvalidDeadline = errors.New("goal deadline must be in the future")
	ErrEmptyProof      = errors.New("proof requires a url or a description")
)

// Participant errors
var (
	// ErrNotCreator is returned when someone other than the creator submits proof.
	ErrNotCreator = errors.New("only the goal creator can do this")

	// ErrCreatorCannotBet is returned when the creator tries to take a position
	// on their own goal. Their stake is already on the line.
	ErrCreatorCannotBet = errors.New("creator cannot take a position on their own goal")

	// ErrNotCircleMember is returned when the wallet is not in the goal's circle.
	ErrNotCircleMember = errors.New("wallet is not a member of the goal's circle")

	// ErrSelfVoteForbidden is returned when the creator tries to verify their own goal.
	ErrSelfVoteForbidden = errors.New("cannot verify your own goal")

	// ErrNoPosition is returned when a wallet that is neither the creator nor a
	// position holder asks for a payout.
	ErrNoPosition = errors.New("wallet has no stake in this goal")
)

// Position / vote / claim constraint errors
var (
	ErrInvalidAmount = errors.New("amount must be positive with at most 8 decimal places")
	ErrInvalidSide   = errors.New("invalid side: must be YES or NO")
	ErrInvalidWallet = errors.New("invalid wallet address")

	// ErrSideConflict is returned when a wallet already holds the opposite side.
	// Wrapped in a *RuleError carrying the existing side.
	ErrSideConflict = errors.New("wallet already holds the opposite side")

	// ErrPoolCapExceeded is returned when a position would push the total pool
	// past maxPool. Wrapped in a *RuleError carrying the remaining capacity.
	ErrPoolCapExceeded = errors.New("position exceeds the goal's pool cap")

	ErrAlreadyVoted   = errors.New("wallet has already voted on this goal")
	ErrAlreadyClaimed = errors.New("payout already claimed")
)

// Account errors
var (
	// ErrAccountNotFound is returned when the ledger has no account for a wallet.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientBalance is returned when a debit would take the balance
	// below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Auth errors
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden: insufficient permissions")
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// Infrastructure errors
var (
	// ErrUnavailable is returned when storage or locking gave up after its
	// retry budget. Callers may retry the whole operation.
	ErrUnavailable = errors.New("service temporarily unavailable")

	// ErrCorruptRecord is returned when a stored row violates a record invariant.
	ErrCorruptRecord = errors.New("stored record violates its invariants")
)

// ──────────────────────────────────────────────────────────────────────────────
// Error kinds
// ──────────────────────────────────────────────────────────────────────────────

// Kind is the coarse class of a domain error, used by the transport layer to
// pick a status code.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindInvalidState        Kind = "invalid_state"
	KindPermissionDenied    Kind = "permission_denied"
	KindConstraintViolation Kind = "constraint_violation"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindUnauthenticated     Kind = "unauthenticated"
	KindUnavailable         Kind = "unavailable"
	KindInternal            Kind = "internal"
)

var kindTable = []struct {
	kind Kind
	errs []error
}{
	{KindNotFound, []error{ErrGoalNotFound, ErrAccountNotFound}},
	{KindInvalidState, []error{ErrGoalNotActive, ErrProofNotSubmitted, ErrGoalNotResolved, ErrInvalidState}},
	{KindPermissionDenied, []error{
		ErrNotCreator, ErrCreatorCannotBet, ErrNotCircleMember,
		ErrSelfVoteForbidden, ErrNoPosition, ErrForbidden,
	}},
	{KindConstraintViolation, []error{
		ErrDeadlinePassed, ErrInvalidAmount, ErrInvalidSide, ErrInvalidWallet,
		ErrSideConflict, ErrPoolCapExceeded, ErrAlreadyVoted, ErrAlreadyClaimed,
		ErrEmptyProof, ErrTitleRequired, ErrInvalidDeadline,
	}},
	{KindInsufficientFunds, []error{ErrInsufficientBalance}},
	{KindUnauthenticated, []error{ErrUnauthorized, ErrTokenExpired, ErrTokenInvalid}},
	{KindUnavailable, []error{ErrUnavailable}},
}

// KindOf classifies err. Anything not recognised, including ErrCorruptRecord,
// is KindInternal.
func KindOf(err error) Kind {
	for _, row := range kindTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.kind
			}
		}
	}
	return KindInternal
}

// IsNotFound returns true when err (or any error in its chain) is a domain
// "not found" error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsConflict returns true for errors that represent a state conflict.
func IsConflict(err error) bool {
	k := KindOf(err)
	return k == KindInvalidState || k == KindConstraintViolation
}

// ──────────────────────────────────────────────────────────────────────────────
// RuleError: sentinel plus structured detail
// ──────────────────────────────────────────────────────────────────────────────

// RuleError wraps a sentinel with the facts a client needs to recover, e.g.
// how much pool capacity is left.
type RuleError struct {
	Err          error
	ExistingSide Side
	Remaining    *decimal.Decimal
	Available    *decimal.Decimal
	Required     *decimal.Decimal
}

func (e *RuleError) Error() string {
	switch {
	case e.ExistingSide != "":
		return fmt.Sprintf("%s (existing side %s)", e.Err, e.ExistingSide)
	case e.Remaining != nil:
		return fmt.Sprintf("%s (remaining capacity %s)", e.Err, e.Remaining.StringFixed(2))
	case e.Available != nil && e.Required != nil:
		return fmt.Sprintf("%s (available %s, required %s)", e.Err, e.Available.StringFixed(2), e.Required.StringFixed(2))
	}
	return e.Err.Error()
}

func (e *RuleError) Unwrap() error { return e.Err }

// Details flattens the structured fields for transport.
func (e *RuleError) Details() map[string]string {
	d := map[string]string{}
	if e.ExistingSide != "" {
		d["existing_side"] = string(e.ExistingSide)
	}
	if e.Remaining != nil {
		d["remaining_capacity"] = e.Remaining.StringFixed(2)
	}
	if e.Available != nil {
		d["available"] = e.Available.StringFixed(2)
	}
	if e.Required != nil {
		d["required"] = e.Required.StringFixed(2)
	}
	return d
}

// SideConflict builds the error returned when a wallet already holds existing.
func SideConflict(existing Side) error {
	return &RuleError{Err: ErrSideConflict, ExistingSide: existing}
}

// PoolCapExceeded builds the error returned when only remaining fits in the pool.
func PoolCapExceeded(remaining decimal.Decimal) error {
	return &RuleError{Err: ErrPoolCapExceeded, Remaining: &remaining}
}

// InsufficientBalance builds the error returned when available < required.
func InsufficientBalance(available, required decimal.Decimal) error {
	return &RuleError{Err: ErrInsufficientBalance, Available: &available, Required: &required}
}

// PublicMessage returns the message of the first known sentinel in err's
// chain, so wrapping context never reaches clients. Unknown errors get a
// generic message.
func PublicMessage(err error) string {
	for _, row := range kindTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return target.Error()
			}
		}
	}
	return "internal server error"
}

// DetailsOf returns the structured detail of the first RuleError in err's
// chain, or nil.
func DetailsOf(err error) map[string]string {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Details()
	}
	return nil
}
