package wager

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrInvalidSeed       = errors.New("invalid seed")
	ErrTransientNetwork  = errors.New("transient network error")
	ErrTimeout           = errors.New("randomness not fulfilled in time")
	ErrSignerRejected    = errors.New("operator signer rejected")
	ErrResultNotFound    = errors.New("result not found")
	ErrUnparseableResult = errors.New("unparseable result")
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrAbandoned         = errors.New("wager abandoned by caller")
	ErrUnexpectedResult  = errors.New("unexpected result kind")

	// o settle chegou ao ledger mas a transição não foi registrada; exige inspeção manual
	ErrSettlementUnrecorded = errors.New("settlement landed but was not recorded")
)

// FailureReason identifica o passo em que a aposta foi abortada
type FailureReason string

const (
	ReasonPlaceStakeRejected   FailureReason = "PLACE_STAKE_REJECTED"
	ReasonRequestRejected      FailureReason = "REQUEST_REJECTED"
	ReasonResolveOrParseFailed FailureReason = "RESOLVE_OR_PARSE_FAILED"
	ReasonRefundFailed         FailureReason = "REFUND_FAILED"
)

// NeedsReconciliation indica se há stake travado no ledger depois dessa falha
func (r FailureReason) NeedsReconciliation() bool {
	return r != ReasonPlaceStakeRejected
}

// StepError carrega passo, motivo e erro de origem de uma falha
type StepError struct {
	Step   string
	Reason FailureReason
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Step, e.Reason, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Validation embrulha um erro de entrada em ErrValidation
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
