package sqlite

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
)

// Logger is the logging surface the package needs.
// It is satisfied by *slog.Logger and logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Diagnostics reports engine failures together with the call site that
// observed them. It is developer-facing: nothing here is meant for end users.
type Diagnostics struct {
	log Logger
}

// NewDiagnostics returns diagnostics writing to log. A nil log writes
// text records to stderr.
func NewDiagnostics(log Logger) *Diagnostics {
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Diagnostics{log: log}
}

// Report logs err with the caller's function, file and line. Engine
// errors also carry their SQLite result codes. A nil err is ignored.
func (d *Diagnostics) Report(err error) {
	if err == nil {
		return
	}
	d.report(2, err)
}

func (d *Diagnostics) report(skip int, err error) {
	args := make([]any, 0, 12)
	args = append(args, "error", err)

	var ee *EngineError
	if errors.As(err, &ee) {
		args = append(args, "op", ee.Op, "code", ee.Code, "extended_code", ee.ExtendedCode)
	}

	if pc, file, line, ok := runtime.Caller(skip); ok {
		fn := "unknown"
		if f := runtime.FuncForPC(pc); f != nil {
			fn = f.Name()
		}
		args = append(args, "func", fn, "file", filepath.Base(file), "line", line)
	}

	d.log.Error("SQLite error", args...)
}

// Info passes an informational message through to the logger.
func (d *Diagnostics) Info(msg string, args ...any) {
	d.log.Info(msg, args...)
}

// Warn passes a warning through to the logger.
func (d *Diagnostics) Warn(msg string, args ...any) {
	d.log.Warn(msg, args...)
}
