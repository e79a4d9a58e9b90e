package sqlite

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDiagnostics_Report(t *testing.T) {
	log, buf := newTestLogger()
	diag := NewDiagnostics(log)

	diag.Report(errors.New("disk on fire"))

	out := buf.String()
	for _, want := range []string{
		`msg="SQLite error"`,
		`error="disk on fire"`,
		"func=",
		"TestDiagnostics_Report",
		"file=logger_test.go",
		"line=",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Report() output missing %q:\n%s", want, out)
		}
	}
}

func TestDiagnostics_ReportEngineCodes(t *testing.T) {
	log, buf := newTestLogger()
	diag := NewDiagnostics(log)

	diag.Report(&EngineError{Op: "step", Code: 19, ExtendedCode: 2067, Err: errors.New("UNIQUE constraint failed")})

	out := buf.String()
	for _, want := range []string{"op=step", "code=19", "extended_code=2067"} {
		if !strings.Contains(out, want) {
			t.Errorf("Report() output missing %q:\n%s", want, out)
		}
	}
}

func TestDiagnostics_ReportNil(t *testing.T) {
	log, buf := newTestLogger()
	NewDiagnostics(log).Report(nil)
	if buf.String() != "" {
		t.Errorf("Report(nil) logged %q", buf)
	}
}

func TestEngineError(t *testing.T) {
	inner := errors.New("no such table: x")
	err := engineError("prepare", inner)

	if !errors.Is(err, inner) {
		t.Error("engineError() does not unwrap to the driver error")
	}
	if errors.Is(err, ErrConstraint) {
		t.Error("non-constraint error matched ErrConstraint")
	}
	if again := engineError("step", err); again != err {
		t.Error("engineError() wrapped an EngineError twice")
	}
	if engineError("step", nil) != nil {
		t.Error("engineError(nil) != nil")
	}
	if got := err.Error(); got != "sqlite prepare: no such table: x" {
		t.Errorf("Error() = %q", got)
	}
}
