package bcerrors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseConstants,
				Kind:   KindInvalidRecord,
				Block:  "CONSTANTS",
				Record: 7,
				Bit:    96,
				Detail: "empty aggregate",
			},
			contains: []string{"[constants]", "invalid_record", "CONSTANTS", "record 7", "bit 96", "empty aggregate"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseStream,
				Kind:  KindTruncated,
			},
			contains: []string{"[stream]", "truncated"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseModule,
				Kind:   KindMalformedBlock,
				Detail: "unbalanced block",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[module]", "malformed_block", "unbalanced block", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseStream,
		Kind:  KindTruncated,
		Cause: cause,
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause through Unwrap")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseTypes,
		Kind:  KindOutOfRange,
		Bit:   12,
	}

	if !err.Is(&Error{Phase: PhaseTypes, Kind: KindOutOfRange}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseConstants, Kind: KindOutOfRange}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseTypes, Kind: KindTypeMismatch}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseTypes, Kind: KindOutOfRange}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseFunction, KindInvalidRecord).
		Block("FUNCTION").
		Record(34).
		Bit(1024).
		Cause(cause).
		Detail("callee %d out of range", 9).
		Build()

	if err.Phase != PhaseFunction {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseFunction)
	}
	if err.Kind != KindInvalidRecord {
		t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidRecord)
	}
	if err.Block != "FUNCTION" || err.Record != 34 || err.Bit != 1024 {
		t.Errorf("context = %q/%d/%d, want FUNCTION/34/1024", err.Block, err.Record, err.Bit)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "callee 9 out of range" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("OutOfRange", func(t *testing.T) {
		err := OutOfRange(PhaseTypes, "type", 10, 5)
		if err.Kind != KindOutOfRange {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfRange)
		}
		if !strings.Contains(err.Detail, "10") || !strings.Contains(err.Detail, "5") {
			t.Errorf("Detail = %q, should contain index and limit", err.Detail)
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch(PhaseResolve, "i32", "float")
		if err.Kind != KindTypeMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		err := Duplicate(PhaseTypes, "type", 3)
		if err.Kind != KindDuplicate {
			t.Errorf("Kind = %v, want %v", err.Kind, KindDuplicate)
		}
	})

	t.Run("Unresolved", func(t *testing.T) {
		err := Unresolved(PhaseResolve, "metadata", 2)
		if err.Kind != KindUnresolvedRef {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnresolvedRef)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		err := Malformed(PhaseModule, "MODULE", "nested module block")
		if err.Kind != KindMalformedBlock || err.Block != "MODULE" {
			t.Errorf("got %v", err)
		}
	})

	t.Run("Stream", func(t *testing.T) {
		cause := errors.New("unexpected end of stream")
		err := Stream(4096, cause)
		if err.Bit != 4096 || !errors.Is(err, cause) {
			t.Errorf("got %v", err)
		}
	})
}
