// Package validation checks request fields against declarative rules.
//
// Rules are plain values so callers can assemble rule sets without touching
// the underlying engine. [Validator] evaluates them with ozzo-validation and
// resolves [Unique] rules through an injected [ExistsFunc].
package validation

import (
	"regexp"
	"sort"
	"strings"
)

type ruleKind int

const (
	kindRequired ruleKind = iota
	kindEmail
	kindMin
	kindMatch
	kindUnique
)

// Rule is one constraint on a field value.
type Rule struct {
	kind    ruleKind
	min     int
	pattern *regexp.Regexp
	message string
	column  string
}

// Required rejects nil and empty values.
func Required() Rule { return Rule{kind: kindRequired} }

// Email requires a syntactically valid address.
func Email() Rule { return Rule{kind: kindEmail} }

// Min requires a string of at least n characters.
func Min(n int) Rule { return Rule{kind: kindMin, min: n} }

// Match requires the value to match pattern. message replaces the default
// failure text when non-empty.
func Match(pattern *regexp.Regexp, message string) Rule {
	return Rule{kind: kindMatch, pattern: pattern, message: message}
}

// Unique requires that no stored record has the value in column. An empty
// column uses the field name.
func Unique(column string) Rule { return Rule{kind: kindUnique, column: column} }

// Rules maps a field name to its constraints.
type Rules map[string][]Rule

// Merge returns a copy of r with other's entries added. Fields present in
// both take other's rules.
func (r Rules) Merge(other Rules) Rules {
	out := make(Rules, len(r)+len(other))
	for field, rules := range r {
		out[field] = rules
	}
	for field, rules := range other {
		out[field] = rules
	}
	return out
}

// Errors maps a field name to its first failure message.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return strings.Join(parts, "; ")
}

var (
	hasLetter  = regexp.MustCompile(`[a-zA-Z]`)
	hasDigit   = regexp.MustCompile(`[0-9]`)
	hasSpecial = regexp.MustCompile(`[!@#$%]`)
)

// PasswordRules is the default complexity policy: at least six characters with
// a letter, a digit and one of !@#$%.
func PasswordRules() []Rule {
	const msg = "The password must contain at least one letter, one digit and one special character (!@#$%)."
	return []Rule{
		Required(),
		Min(6),
		Match(hasLetter, msg),
		Match(hasDigit, msg),
		Match(hasSpecial, msg),
	}
}
