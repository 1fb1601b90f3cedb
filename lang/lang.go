// Package lang renders resolution summaries in English.
package lang

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gertd/go-pluralize"
)

const (
	DefaultPattern   = "%s"
	DefaultSeparator = ","
	DefaultOperator  = "and"
)

var pluralizer = pluralize.NewClient()

// Tense appends a form of "to be" to an enumeration.
type Tense int

const (
	NoTense Tense = iota
	Present
	Past
)

type Enumerator struct {
	Pattern   string
	Separator string
	Operator  string
	Tense     Tense
}

// Do joins elements as "a, b, and c", formatting each with Pattern.
func (e Enumerator) Do(elements ...string) string {
	pattern, separator, operator := DefaultPattern, DefaultSeparator, DefaultOperator
	if e.Pattern != "" {
		pattern = e.Pattern
	}
	if e.Separator != "" {
		separator = e.Separator
	}
	if e.Operator != "" {
		operator = e.Operator
	}
	res := &strings.Builder{}
	for idx, element := range elements {
		fmt.Fprintf(res, pattern, element)
		switch {
		case idx+2 < len(elements):
			fmt.Fprintf(res, "%s ", separator)
		case idx+2 == len(elements) && len(elements) > 2:
			fmt.Fprintf(res, "%s %s ", separator, operator)
		case idx+2 == len(elements):
			fmt.Fprintf(res, " %s ", operator)
		}
	}
	switch e.Tense {
	case Present:
		if len(elements) == 1 {
			res.WriteString(" is")
		} else {
			res.WriteString(" are")
		}
	case Past:
		if len(elements) == 1 {
			res.WriteString(" was")
		} else {
			res.WriteString(" were")
		}
	}
	return res.String()
}

// Count returns "1 yard", "3 yards" and so on.
func Count(n int, word string) string {
	return pluralizer.Pluralize(word, n, true)
}

// Capitalize upper cases the first letter of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
