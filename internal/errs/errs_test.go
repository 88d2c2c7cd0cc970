package errs

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWrapKeepsCause(t *testing.T) {
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil || WithStack(nil) != nil {
		t.Fatalf("nil error must stay nil")
	}

	err := Wrapf(Wrap(io.EOF, "read row"), "parse %s", "day0.csv")
	if !errors.Is(err, io.EOF) {
		t.Fatalf("errors.Is(%v, io.EOF) = false", err)
	}
	if err.Error() != "parse day0.csv: read row: EOF" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestWithStackCapturesOnce(t *testing.T) {
	first := WithStack(io.EOF)
	second := WithStack(Wrap(first, "outer"))

	var se *StackError
	if !errors.As(second, &se) || len(se.Stack()) == 0 {
		t.Fatalf("expected stack in chain")
	}
	if _, ok := second.(*StackError); ok {
		t.Fatalf("WithStack() re-captured an existing stack")
	}
}

func TestErrorChainStrings(t *testing.T) {
	err := Wrap(errors.Join(WithStack(io.EOF), errors.New("disk full")), "write batch")

	want := []string{
		"write batch: EOF\ndisk full",
		"EOF\ndisk full",
		"EOF",
		"disk full",
	}
	if d := cmp.Diff(want, ErrorChainStrings(err)); d != "" {
		t.Fatalf("ErrorChainStrings() mismatch (-want +got):\n%s", d)
	}
}

func TestLoggableValue(t *testing.T) {
	value := Loggable(Wrap(io.EOF, "read")).LogValue()
	if value.Kind() != slog.KindGroup {
		t.Fatalf("LogValue() kind = %v", value.Kind())
	}

	got := map[string]string{}
	for _, attr := range value.Group() {
		got[attr.Key] = attr.Value.String()
	}
	if got["message"] != "read: EOF" || got["cause_type"] != "*errors.errorString" {
		t.Fatalf("LogValue() = %v", got)
	}
	if _, ok := got["stack"]; ok {
		t.Fatalf("LogValue() reported a stack that was never captured")
	}
}
