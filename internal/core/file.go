// Package core holds the source files, locations and diagnostics shared by
// every stage of dslgen.
package core

import "sync"

// File is a single compilation unit. A File is never mutated after it is
// created, so it can be shared freely between stages.
type File struct {
	path            string
	source          string
	pluginGenerated bool

	breaksOnce sync.Once
	breaks     []int
}

// NewFile creates an author-written source file.
func NewFile(path, source string) *File {
	return &File{path: path, source: source}
}

// NewGeneratedFile creates a file whose contents were produced by a plugin.
func NewGeneratedFile(path, source string) *File {
	return &File{path: path, source: source, pluginGenerated: true}
}

// Path returns the path the file was registered under.
func (f *File) Path() string { return f.path }

// Source returns the full file text.
func (f *File) Source() string { return f.source }

// PluginGenerated reports whether the file was produced by a DSL plugin.
func (f *File) PluginGenerated() bool { return f.pluginGenerated }

// lineBreaks returns the byte offsets of every newline in the file.
func (f *File) lineBreaks() []int {
	f.breaksOnce.Do(func() {
		for i := 0; i < len(f.source); i++ {
			if f.source[i] == '\n' {
				f.breaks = append(f.breaks, i)
			}
		}
	})
	return f.breaks
}
