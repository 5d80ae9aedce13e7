package lub

import (
	"fmt"
	"github.com/cottand/qlub/atm"
	"github.com/pkg/errors"
)

type ErrCode int

const (
	None ErrCode = iota
	ShapeMismatch
	UnexpectedCombination
	ArityMismatch
	DepthExceeded
	ConversionFailed
)

// Failure is a fatal inconsistency found while computing a least upper bound.
// Failures are returned wrapped with the stack of the point where the computation aborted.
type Failure interface {
	error
	Code() ErrCode
}

// FormatWithCode renders err prefixed by its failure code, if it has one.
// A nil err renders as the empty string.
func FormatWithCode(err error) string {
	if err == nil {
		return ""
	}
	var f Failure
	if errors.As(err, &f) {
		return fmt.Sprintf("(E%03d) %s", f.Code(), err.Error())
	}
	return err.Error()
}

// CodeOf returns the code of the Failure in err's chain, or None
func CodeOf(err error) ErrCode {
	var f Failure
	if errors.As(err, &f) {
		return f.Code()
	}
	return None
}

func newFailure[F Failure](f F) error {
	return errors.WithStack(f)
}

type NewShapeMismatch struct {
	Found    string
	Required string
	Reason   string
}

func (e NewShapeMismatch) Error() string {
	msg := fmt.Sprintf("unexpected type: found %s, required %s", e.Found, e.Required)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}
func (e NewShapeMismatch) Code() ErrCode { return ShapeMismatch }

type NewUnexpectedCombination struct {
	Kind1, Kind2 atm.Kind
	Type1, Type2 string
	Target       string
}

func (e NewUnexpectedCombination) Error() string {
	return fmt.Sprintf("unexpected combination: type1: %v type2: %v\ntype1: %s\ntype2: %s\nlub: %s",
		e.Kind1, e.Kind2, e.Type1, e.Type2, e.Target)
}
func (e NewUnexpectedCombination) Code() ErrCode { return UnexpectedCombination }

type NewArityMismatch struct {
	Of           string
	Type1, Type2 string
	Len1, Len2   int
}

func (e NewArityMismatch) Error() string {
	return fmt.Sprintf("%s count differs: %s has %d, %s has %d", e.Of, e.Type1, e.Len1, e.Type2, e.Len2)
}
func (e NewArityMismatch) Code() ErrCode { return ArityMismatch }

type NewDepthExceeded struct {
	Limit        int
	Type1, Type2 string
}

func (e NewDepthExceeded) Error() string {
	return fmt.Sprintf("exceeded max depth limit of %d while combining %s and %s", e.Limit, e.Type1, e.Type2)
}
func (e NewDepthExceeded) Code() ErrCode { return DepthExceeded }

type NewConversionFailed struct {
	Type   string
	Target string
	From   error
}

func (e NewConversionFailed) Error() string {
	return fmt.Sprintf("could not view %s as %s: %v", e.Type, e.Target, e.From)
}
func (e NewConversionFailed) Code() ErrCode { return ConversionFailed }
func (e NewConversionFailed) Unwrap() error { return e.From }
