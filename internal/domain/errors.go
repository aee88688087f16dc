package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
)

// Validation errors: bad arguments. No state is changed.
var (
	ErrTooEarly          = errors.New("opening date has not passed")
	ErrBondTooLow        = errors.New("bond too low")
	ErrStaleAssumption   = errors.New("current bond exceeds max previous bond")
	ErrMismatchedArrays  = errors.New("history arrays differ in length")
	ErrUnknownTemplate   = errors.New("template does not exist")
	ErrInvalidTimeout    = errors.New("timeout must be positive and below 365 days")
	ErrNoArbitrator      = errors.New("arbitrator must be set")
	ErrAmountOverflow    = errors.New("amount overflow")
	ErrZeroAnswerer      = errors.New("answerer must be set")
	ErrRevealTooLate     = errors.New("reveal deadline has passed")
	ErrInvalidPayout     = errors.New("invalid payout vector")
	ErrNotDesignated     = errors.New("caller is not the designated reporter")
	ErrEmptyHistory      = errors.New("at least one history entry must be supplied")
	ErrInvalidCommitment = errors.New("commitment id does not match")
	ErrClockFixed        = errors.New("clock follows wall time and cannot be set")
	ErrTimeBackwards     = errors.New("time cannot move backwards")
)

// State errors: wrong lifecycle phase.
var (
	ErrDuplicateQuestion       = errors.New("question already exists")
	ErrQuestionFrozen          = errors.New("question is pending arbitration")
	ErrQuestionFinalized       = errors.New("question is already finalized")
	ErrNotYetFinalized         = errors.New("question is not yet finalized")
	ErrNotAnswered             = errors.New("question has no answer")
	ErrNotArbitrator           = errors.New("caller is not the question arbitrator")
	ErrNotPendingArbitration   = errors.New("question is not pending arbitration")
	ErrArbitrationNotRequested = errors.New("arbitration not requested")
	ErrAlreadyCreated          = errors.New("market already created")
	ErrMarketNotCreated        = errors.New("market not created")
	ErrAlreadyReported         = errors.New("answer already reported")
	ErrAlreadyClaimed          = errors.New("winnings already claimed")
	ErrCommitmentExists        = errors.New("commitment already exists")
	ErrAlreadyRevealed         = errors.New("commitment already revealed")
	ErrMarketNotFinalized      = errors.New("market not finalized")
	ErrMarketNotEnded          = errors.New("market has not reached its end time")
	ErrAlreadyInitialReported  = errors.New("market already has an initial report")
	ErrFeeWindowOpen           = errors.New("fee window has not ended")
)

// Resource errors: the caller must top up and retry.
var (
	ErrInsufficientFee     = errors.New("insufficient dispute fee")
	ErrInsufficientBond    = errors.New("insufficient bond")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Integrity errors: forged or wrong history.
var (
	ErrHistoryMismatch   = errors.New("history input does not match stored hash")
	ErrIncompleteHistory = errors.New("history does not reach the first answer")
	ErrAnswerMismatch    = errors.New("supplied answer does not match current tip")
)

// ErrorKind groups errors by how a caller should react to them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindState
	KindResource
	KindIntegrity
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindResource:
		return "resource"
	case KindIntegrity:
		return "integrity"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var errorKinds = map[error]ErrorKind{
	ErrNotFound: KindNotFound,

	ErrTooEarly:          KindValidation,
	ErrBondTooLow:        KindValidation,
	ErrStaleAssumption:   KindValidation,
	ErrMismatchedArrays:  KindValidation,
	ErrUnknownTemplate:   KindValidation,
	ErrInvalidTimeout:    KindValidation,
	ErrNoArbitrator:      KindValidation,
	ErrAmountOverflow:    KindValidation,
	ErrZeroAnswerer:      KindValidation,
	ErrRevealTooLate:     KindValidation,
	ErrInvalidPayout:     KindValidation,
	ErrNotDesignated:     KindValidation,
	ErrEmptyHistory:      KindValidation,
	ErrInvalidCommitment: KindValidation,
	ErrUnauthorized:      KindValidation,
	ErrClockFixed:        KindValidation,
	ErrTimeBackwards:     KindValidation,

	ErrDuplicateQuestion:       KindState,
	ErrAlreadyExists:           KindState,
	ErrQuestionFrozen:          KindState,
	ErrQuestionFinalized:       KindState,
	ErrNotYetFinalized:         KindState,
	ErrNotAnswered:             KindState,
	ErrNotArbitrator:           KindState,
	ErrNotPendingArbitration:   KindState,
	ErrArbitrationNotRequested: KindState,
	ErrAlreadyCreated:          KindState,
	ErrMarketNotCreated:        KindState,
	ErrAlreadyReported:         KindState,
	ErrAlreadyClaimed:          KindState,
	ErrCommitmentExists:        KindState,
	ErrAlreadyRevealed:         KindState,
	ErrMarketNotFinalized:      KindState,
	ErrMarketNotEnded:          KindState,
	ErrAlreadyInitialReported:  KindState,
	ErrFeeWindowOpen:           KindState,
	ErrLockHeld:                KindState,

	ErrInsufficientFee:     KindResource,
	ErrInsufficientBond:    KindResource,
	ErrInsufficientBalance: KindResource,

	ErrHistoryMismatch:   KindIntegrity,
	ErrIncompleteHistory: KindIntegrity,
	ErrAnswerMismatch:    KindIntegrity,
}

// KindOf classifies err by the first known sentinel in its chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindInternal
	}
	for sentinel, kind := range errorKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}
