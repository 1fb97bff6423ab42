package core

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
)

// ErrorClass identifies a family of diagnostics.
type ErrorClass struct {
	Code int
	Name string
}

var (
	ParseError      = ErrorClass{Code: 2001, Name: "ParseError"}
	SubprocessError = ErrorClass{Code: 3001, Name: "SubprocessError"}
)

// Error is a single user-visible diagnostic.
type Error struct {
	Loc      Loc
	Class    ErrorClass
	Header   string
	Lines    []string
	Silenced bool
}

func (e *Error) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s [%d]", e.Loc.FilePosToString(), e.Header, e.Class.Code)
	for _, line := range e.Lines {
		fmt.Fprintf(&b, "\n    %s", line)
	}
	return b.String()
}

// ErrorQueue collects diagnostics from every stage. It is safe for
// concurrent use.
type ErrorQueue struct {
	mu         sync.Mutex
	errors     []*Error
	suppressed map[int]struct{}
	silenced   map[int]struct{}
	nonSilent  int
}

// NewErrorQueue returns an empty queue.
func NewErrorQueue() *ErrorQueue {
	return &ErrorQueue{
		suppressed: map[int]struct{}{},
		silenced:   map[int]struct{}{},
	}
}

// Suppress drops every future error with one of the given codes.
func (q *ErrorQueue) Suppress(codes ...int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range codes {
		q.suppressed[c] = struct{}{}
	}
}

// Silence keeps errors with the given codes in the queue but leaves them out
// of the rendered output and of NonSilencedCount.
func (q *ErrorQueue) Silence(codes ...int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range codes {
		q.silenced[c] = struct{}{}
	}
}

// ErrorBuilder accumulates one diagnostic until Done is called.
type ErrorBuilder struct {
	queue *ErrorQueue
	err   *Error
}

// BeginError starts a diagnostic at loc. It returns nil when the class is
// suppressed; callers must check before using the builder.
func (q *ErrorQueue) BeginError(loc Loc, class ErrorClass) *ErrorBuilder {
	q.mu.Lock()
	_, suppressed := q.suppressed[class.Code]
	_, silenced := q.silenced[class.Code]
	q.mu.Unlock()
	if suppressed {
		return nil
	}
	return &ErrorBuilder{queue: q, err: &Error{Loc: loc, Class: class, Silenced: silenced}}
}

// SetHeader sets the one-line summary of the diagnostic.
func (b *ErrorBuilder) SetHeader(format string, args ...any) *ErrorBuilder {
	b.err.Header = fmt.Sprintf(format, args...)
	return b
}

// AddLine appends a detail line shown under the header.
func (b *ErrorBuilder) AddLine(format string, args ...any) *ErrorBuilder {
	b.err.Lines = append(b.err.Lines, fmt.Sprintf(format, args...))
	return b
}

// Done pushes the diagnostic onto the queue. Calling Done twice is a no-op.
func (b *ErrorBuilder) Done() {
	if b.err == nil {
		return
	}
	b.queue.Push(b.err)
	b.err = nil
}

// Push adds a fully built error.
func (q *ErrorQueue) Push(e *Error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !e.Silenced {
		q.nonSilent++
	}
	q.errors = append(q.errors, e)
}

// NonSilencedCount returns the number of non-silenced errors pushed so far,
// including ones already drained.
func (q *ErrorQueue) NonSilencedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.nonSilent
}

// Drain removes and returns every queued error ordered by file path and
// position. Errors at the same position keep their push order.
func (q *ErrorQueue) Drain() []*Error {
	q.mu.Lock()
	out := q.errors
	q.errors = nil
	q.mu.Unlock()

	slices.SortStableFunc(out, func(a, b *Error) int {
		return cmp.Or(
			cmp.Compare(pathOf(a.Loc), pathOf(b.Loc)),
			cmp.Compare(a.Loc.Begin, b.Loc.Begin),
			cmp.Compare(a.Loc.End, b.Loc.End),
		)
	})
	return out
}

// Flush drains the queue and writes every non-silenced error to w. It
// returns the errors written, in output order.
func (q *ErrorQueue) Flush(w io.Writer) []*Error {
	var written []*Error
	for _, e := range q.Drain() {
		if e.Silenced {
			continue
		}
		_, _ = fmt.Fprintln(w, e.String())
		written = append(written, e)
	}
	return written
}

// FlushErrorCount writes the trailing summary line.
func (q *ErrorQueue) FlushErrorCount(w io.Writer) {
	n := q.NonSilencedCount()
	if n == 0 {
		_, _ = fmt.Fprintln(w, "No errors! Great job.")
		return
	}
	_, _ = fmt.Fprintf(w, "Errors: %d\n", n)
}

func pathOf(l Loc) string {
	if l.File == nil {
		return ""
	}
	return l.File.path
}
