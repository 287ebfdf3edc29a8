package errors

import (
	"strings"
	"testing"
)

func TestErrorRendering(t *testing.T) {
	err := New(Syntax, "Expected ';'", "prog.crom", 3, 7)
	got := err.Error()

	if !strings.Contains(got, "SyntaxError: Expected ';'") {
		t.Errorf("missing kind/message header: %q", got)
	}
	if !strings.Contains(got, "at prog.crom:3:7") {
		t.Errorf("missing location: %q", got)
	}
}

func TestCaretPointsAtColumn(t *testing.T) {
	err := New(Undeclared, "Undeclared identifier 'y'", "prog.crom", 1, 5).
		WithSource("i32 y = x;")
	got := err.Error()

	if !strings.Contains(got, "1 | i32 y = x;") {
		t.Errorf("missing source line: %q", got)
	}

	lines := strings.Split(got, "\n")
	caretLine := lines[len(lines)-1]
	if !strings.HasSuffix(caretLine, "^") {
		t.Fatalf("last line is not a caret: %q", got)
	}
	// gutter "1 | " is 4 wide, indent is 2, column 5 puts the caret
	// under the fifth source character
	want := "  " + strings.Repeat(" ", 4) + strings.Repeat(" ", 4) + "^"
	if caretLine != want {
		t.Errorf("caret line %q, want %q", caretLine, want)
	}
}

func TestMissingFileRendersPlaceholder(t *testing.T) {
	err := New(Lexical, "Unterminated string", "", 2, 1)
	if !strings.Contains(err.Error(), "<input>:2:1") {
		t.Errorf("missing placeholder file: %q", err.Error())
	}
}

func TestInternalErrorsCarryNoLocation(t *testing.T) {
	err := NewInternal("scope underflow (depth %d)", 0)
	if err.Kind != Internal {
		t.Errorf("kind %s, want Internal", err.Kind)
	}
	if strings.Contains(err.Error(), "\n  at ") {
		t.Errorf("internal error should not render a location: %q", err.Error())
	}
}
