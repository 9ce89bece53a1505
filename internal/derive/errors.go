package derive

import "errors"

var (
	ErrNoMatchingProcession = errors.New("no procession matches the password initials")
	ErrAmbiguousProcession  = errors.New("several processions share the password initials")
	ErrNonPositiveAmount    = errors.New("payment amount must be greater than zero")
	ErrAmountExceedsBalance = errors.New("payment amount exceeds the outstanding balance")
	ErrSoldOut              = errors.New("turn has no unsold places left")
)
