package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPostNotFound signals a missing post.
	ErrPostNotFound = errors.New("post not found")
	// ErrUnknownParent signals a reply to a post that does not exist.
	ErrUnknownParent = errors.New("unknown parent post")
	// ErrForbiddenAppend signals an append attempt by a non-author.
	ErrForbiddenAppend = errors.New("only the author may append")
	// ErrContentEmpty signals empty post content.
	ErrContentEmpty = errors.New("content is empty")
	// ErrContentTooLong signals content over the configured maximum.
	ErrContentTooLong = errors.New("content too long")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrThrottled signals a rate window exceeded.
	ErrThrottled = errors.New("rate limit exceeded")
	// ErrMalformedAlgorithm signals a non-numeric weight value.
	ErrMalformedAlgorithm = errors.New("malformed algorithm")
	// ErrAlgorithmNotFound signals a missing stored algorithm.
	ErrAlgorithmNotFound = errors.New("algorithm not found")
	// ErrAlgorithmOwned signals an attempt to overwrite another identity's
	// stored algorithm.
	ErrAlgorithmOwned = errors.New("algorithm owned by another identity")
	// ErrIdentityNotFound signals an unknown identity.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrIdentityExists signals a duplicate fingerprint or display name.
	ErrIdentityExists = errors.New("identity already registered")
	// ErrNotAdmitted signals an identity without admission.
	ErrNotAdmitted = errors.New("identity not admitted")
)

// DimMismatchError wraps ErrVectorDimMismatch with the observed dimensions.
type DimMismatchError struct {
	Got  int
	Want int
}

func (e *DimMismatchError) Error() string {
	return fmt.Sprintf("%s: got %d, want %d", ErrVectorDimMismatch.Error(), e.Got, e.Want)
}

func (e *DimMismatchError) Unwrap() error { return ErrVectorDimMismatch }

// NewDimMismatch creates a dimension mismatch error.
func NewDimMismatch(got, want int) error {
	return &DimMismatchError{Got: got, Want: want}
}
