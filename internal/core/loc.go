package core

import (
	"fmt"
	"sort"
)

// Loc is a byte range [Begin, End) inside a file.
type Loc struct {
	File  *File
	Begin uint32
	End   uint32
}

// Detail is a 1-based line and column.
type Detail struct {
	Line   int
	Column int
}

// NoLoc returns a location that does not exist in any file.
func NoLoc() Loc { return Loc{} }

// Exists reports whether l points into a real file.
func (l Loc) Exists() bool {
	return l.File != nil && l.Begin <= l.End && int(l.End) <= len(l.File.source)
}

// Source returns the verbatim text covered by l.
func (l Loc) Source() string {
	if !l.Exists() {
		return ""
	}
	return l.File.source[l.Begin:l.End]
}

// Position returns the line/column of both ends of l.
func (l Loc) Position() (Detail, Detail) {
	if l.File == nil {
		return Detail{}, Detail{}
	}
	return OffsetToPos(l.File, l.Begin), OffsetToPos(l.File, l.End)
}

// FilePosToString renders l as "path:line".
func (l Loc) FilePosToString() string {
	if l.File == nil {
		return "???"
	}
	begin, _ := l.Position()
	return fmt.Sprintf("%s:%d", l.File.path, begin.Line)
}

func (l Loc) String() string {
	if l.File == nil {
		return "???"
	}
	begin, _ := l.Position()
	return fmt.Sprintf("%s:%d:%d", l.File.path, begin.Line, begin.Column)
}

// OffsetToPos converts a byte offset in f into a line/column pair.
func OffsetToPos(f *File, off uint32) Detail {
	breaks := f.lineBreaks()
	n := sort.SearchInts(breaks, int(off))
	prev := -1
	if n > 0 {
		prev = breaks[n-1]
	}
	return Detail{Line: n + 1, Column: int(off) - prev}
}
