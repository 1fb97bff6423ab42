// Package model defines the result of a dslgen run, ready for serialization.
package model

// Unit describes one plugin-generated file.
type Unit struct {
	Source  string `yaml:"source"`
	Path    string `yaml:"path"`
	Written string `yaml:"written,omitempty"`
	Bytes   int    `yaml:"bytes"`
}

// Diagnostic is a rendered error.
type Diagnostic struct {
	File    string `yaml:"file"`
	Line    int    `yaml:"line"`
	Column  int    `yaml:"column"`
	Code    int    `yaml:"code"`
	Message string `yaml:"message"`
}

// Report is the complete outcome of a run over one project.
type Report struct {
	Root        string       `yaml:"root"`
	Scanned     int          `yaml:"scanned"`
	Triggers    []string     `yaml:"triggers"`
	Units       []Unit       `yaml:"units"`
	Diagnostics []Diagnostic `yaml:"diagnostics"`
}
