package schema

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Problem is one violation found while validating a configuration.
type Problem struct {
	Field   string // empty when the problem concerns the whole document
	Message string
}

func (p Problem) String() string {
	if p.Field == "" {
		return p.Message
	}
	return p.Field + ": " + p.Message
}

// ValidationError reports every violation of a configuration.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.String()
	}
	return "invalid properties: " + strings.Join(msgs, "; ")
}

// OutdatedError reports the use of a retired property or helper.
type OutdatedError struct {
	Key         string
	Replacement string
}

func (e *OutdatedError) Error() string {
	return fmt.Sprintf("This plugin is outdated: use '%s'", e.Replacement)
}

func newValidationError(errs []gojsonschema.ResultError) *ValidationError {
	problems := make([]Problem, 0, len(errs))
	for _, e := range errs {
		field := e.Field()
		if field == "" || field == "(root)" {
			field = ""
			if prop, ok := e.Details()["property"].(string); ok {
				field = prop
			}
		}
		problems = append(problems, Problem{Field: field, Message: e.Description()})
	}
	slices.SortFunc(problems, func(a, b Problem) int {
		return cmp.Or(cmp.Compare(a.Field, b.Field), cmp.Compare(a.Message, b.Message))
	})
	return &ValidationError{Problems: problems}
}
