// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fileIndent = 4  // spaces to indent file entries
	nameWidth  = 40 // Base width for the source path
	kindWidth  = 10 // Width for the operation label
)

// 🏷️ OpKind is what happened to a file
type OpKind int

const (
	OpPlanned   OpKind = iota // move computed but not carried out
	OpMoved                   // renamed in place
	OpCopied                  // copied, source kept
	OpTrashed                 // moved into the trash session
	OpDeleted                 // removed without trash
	OpRewritten               // text rewritten through the scoped writer
	OpSkipped                 // left alone on purpose
	OpFailed                  // operation errored, file untouched
)

// String returns the label shown in the console.
func (k OpKind) String() string {
	switch k {
	case OpPlanned:
		return "planned"
	case OpMoved:
		return "moved"
	case OpCopied:
		return "copied"
	case OpTrashed:
		return "trashed"
	case OpDeleted:
		return "deleted"
	case OpRewritten:
		return "rewritten"
	case OpSkipped:
		return "skipped"
	case OpFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// 🎯 FileOperation represents a file operation for logging
type FileOperation struct {
	Path         string // path relative to its project
	Target       string // destination, when the file moved
	Kind         OpKind
	Replacements int   // changed lines for rewrites
	Err          error // cause for failures
}

// 🎯 Logger prints file operations to a console and mirrors them to zerolog
type Logger struct {
	zlog       zerolog.Logger
	console    io.Writer
	mu         sync.Mutex
	operations []FileOperation
}

// 🏭 New creates a new logger
func New(console io.Writer, zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
	}
}

// Discard returns a logger that prints nothing.
func Discard() *Logger {
	return New(io.Discard, zerolog.Nop())
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context, or a discarding one
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return Discard()
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatFileOperation formats a file operation for display
func (l *Logger) formatFileOperation(op FileOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch op.Kind {
	case OpCopied:
		symbol = '✓'
		symbolColor = color.FgGreen
	case OpMoved, OpRewritten:
		symbol = '⟳'
		symbolColor = color.FgBlue
	case OpTrashed, OpDeleted, OpFailed:
		symbol = '✗'
		symbolColor = color.FgRed
	default:
		symbol = '-'
		symbolColor = color.FgYellow
	}

	var kindColor color.Attribute
	switch op.Kind {
	case OpFailed:
		kindColor = color.FgRed
	case OpRewritten:
		kindColor = color.FgCyan
	case OpPlanned, OpSkipped:
		kindColor = color.FgYellow
	default:
		kindColor = color.FgBlue
	}

	detail := ""
	switch {
	case op.Err != nil:
		detail = op.Err.Error()
	case op.Target != "":
		detail = "→ " + op.Target
	case op.Kind == OpRewritten:
		detail = fmt.Sprintf("(%d lines)", op.Replacements)
	}

	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		color.New(kindColor).Sprint(fmt.Sprintf("%-*s", kindWidth, op.Kind)),
		detail)
}

// 📝 LogFileOperation logs a file operation
func (l *Logger) LogFileOperation(ctx context.Context, op FileOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.operations = append(l.operations, op)
	fmt.Fprintln(l.console, l.formatFileOperation(op))

	ev := l.zlog.Info()
	if op.Err != nil {
		ev = l.zlog.Error().Err(op.Err)
	}
	ev.Str("file", op.Path).
		Str("target", op.Target).
		Str("op", op.Kind.String()).
		Int("replacements", op.Replacements).
		Msg("file operation")
}

// Operations returns everything logged so far.
func (l *Logger) Operations() []FileOperation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]FileOperation, len(l.operations))
	copy(out, l.operations)
	return out
}

// 📊 Summary prints a count per operation kind
func (l *Logger) Summary() {
	l.mu.Lock()
	counts := map[OpKind]int{}
	for _, op := range l.operations {
		counts[op.Kind]++
	}
	l.mu.Unlock()

	if len(counts) == 0 {
		l.Info("nothing to do")
		return
	}

	kinds := make([]OpKind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	msg := ""
	for i, k := range kinds {
		if i > 0 {
			msg += ", "
		}
		msg += fmt.Sprintf("%d %s", counts[k], k)
	}
	if counts[OpFailed] > 0 {
		l.Warning(msg)
		return
	}
	l.Success(msg)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("fwt")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}
