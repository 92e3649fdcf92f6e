package model

import (
	"errors"
	"fmt"
)

var (
	ErrParentOutOfRange       = errors.New("parent bone index out of range")
	ErrCyclicParent           = errors.New("cyclic parent chain")
	ErrInherentOutOfRange     = errors.New("inherent source index out of range")
	ErrCyclicInherent         = errors.New("cyclic inherent binding")
	ErrInvalidConstraintChain = errors.New("invalid constraint chain")
	ErrMorphOutOfRange        = errors.New("morph reference out of range")
	ErrGroupSelfInclusion     = errors.New("group morph includes itself")
	ErrMaterialRange          = errors.New("material vertex range invalid")
	ErrRigidBodyOutOfRange    = errors.New("rigid body bone index out of range")
	ErrDuplicateName          = errors.New("duplicate name")
	ErrBindPoseMismatch       = errors.New("bind pose does not match model")
	ErrInvalidOutsideParent   = errors.New("invalid outside parent binding")
)

// ValidationError reports a structural defect found while building a Model.
// It wraps one of the sentinel errors above.
type ValidationError struct {
	// Element is the kind of object at fault, e.g. "bone" or "morph".
	Element string

	// Index is the arena index of the object at fault.
	Index int

	// Err is the wrapped sentinel.
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("model: %s %d: %v", e.Element, e.Index, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(element string, index int, err error) *ValidationError {
	return &ValidationError{Element: element, Index: index, Err: err}
}
