package lang

import (
	"github.com/smacker/go-tree-sitter/ruby"
)

func init() {
	Languages["ruby"] = &Language{
		Name:       "ruby",
		Extensions: []string{".rb", ".rbi", ".rake", ".gemspec"},
		lang:       ruby.GetLanguage(),
	}
}

// Ruby returns the registered Ruby language.
func Ruby() *Language {
	return Languages["ruby"]
}
