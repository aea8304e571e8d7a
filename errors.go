package kernelfx

import (
	"errors"
	"fmt"
)

// Setup errors. Any of these aborts pipeline construction.
var (
	ErrCompile            = errors.New("kernelfx: shader compile failed")
	ErrLink               = errors.New("kernelfx: program link failed")
	ErrMissingBinding     = errors.New("kernelfx: missing binding")
	ErrUnsupportedProgram = errors.New("kernelfx: program not supported by device")
)

// Resource and state errors.
var (
	ErrResource       = errors.New("kernelfx: resource allocation failed")
	ErrInvalidSize    = errors.New("kernelfx: invalid size")
	ErrNoImage        = errors.New("kernelfx: no image loaded")
	ErrDisposed       = errors.New("kernelfx: pipeline disposed")
	ErrDecode         = errors.New("kernelfx: decode failed")
	ErrLoadSuperseded = errors.New("kernelfx: load superseded by a newer load")
)

// Registry errors.
var (
	ErrReservedKernel  = errors.New(`kernelfx: kernel name "normal" is reserved`)
	ErrEmptyKernelName = errors.New("kernelfx: empty kernel name")
	ErrKernelSize      = errors.New("kernelfx: kernel must have exactly 9 coefficients")
)

// ShaderError reports a failed compile or link step together with the
// driver's info log.
type ShaderError struct {
	Stage string // "vertex", "fragment" or "link"
	Log   string
}

func (e *ShaderError) Error() string {
	if e.Stage == "link" {
		return fmt.Sprintf("kernelfx: link program: %s", e.Log)
	}
	return fmt.Sprintf("kernelfx: compile %s shader: %s", e.Stage, e.Log)
}

func (e *ShaderError) Unwrap() error {
	if e.Stage == "link" {
		return ErrLink
	}
	return ErrCompile
}

// BindingKind distinguishes vertex attributes from uniforms.
type BindingKind uint8

const (
	BindingAttribute BindingKind = iota // per-vertex input
	BindingUniform                      // per-draw constant
)

func (k BindingKind) String() string {
	if k == BindingAttribute {
		return "attribute"
	}
	return "uniform"
}

// BindingError reports an attribute or uniform the compiled program does not
// declare. It always indicates a mismatch between shader source and caller.
type BindingError struct {
	Kind BindingKind
	Name string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("kernelfx: missing %s %q", e.Kind, e.Name)
}

func (e *BindingError) Unwrap() error { return ErrMissingBinding }

// DecodeError reports an image reference that could not be fetched or decoded.
type DecodeError struct {
	Ref string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("kernelfx: decode %s: %v", e.Ref, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// ResourceError reports a failed texture, framebuffer or surface allocation.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	if e.Err == nil {
		return "kernelfx: " + e.Op + " failed"
	}
	return fmt.Sprintf("kernelfx: %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrResource}
	}
	return []error{ErrResource, e.Err}
}
