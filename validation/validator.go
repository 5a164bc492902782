package validation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/asaskevich/govalidator"
	ozzo "github.com/go-ozzo/ozzo-validation"
)

// ExistsFunc reports whether a stored record has value in column.
type ExistsFunc func(ctx context.Context, column string, value any) (bool, error)

// Validator evaluates Rules.
//
// A Validator without an ExistsFunc fails every Unique rule with an error
// rather than passing it silently.
type Validator struct {
	exists ExistsFunc
}

// New returns a Validator. exists may be nil when no Unique rules are used.
func New(exists ExistsFunc) *Validator {
	return &Validator{exists: exists}
}

var errUnique = errors.New("unique")

// Validate checks data against rules. Field failures are returned as Errors;
// the error result is reserved for lookup failures behind Unique rules.
func (v *Validator) Validate(ctx context.Context, data map[string]any, rules Rules) (Errors, error) {
	fields := make([]string, 0, len(rules))
	for field := range rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	failures := Errors{}
	for _, field := range fields {
		var lookupErr error
		compiled := v.compile(ctx, field, rules[field], &lookupErr)

		err := ozzo.Validate(data[field], compiled...)
		if lookupErr != nil {
			return nil, fmt.Errorf("validate %s: %w", field, lookupErr)
		}
		if err != nil {
			failures[field] = err.Error()
		}
	}
	if len(failures) == 0 {
		return nil, nil
	}
	return failures, nil
}

func (v *Validator) compile(ctx context.Context, field string, rules []Rule, lookupErr *error) []ozzo.Rule {
	label := strings.ReplaceAll(field, "_", " ")

	out := make([]ozzo.Rule, 0, len(rules))
	for _, r := range rules {
		switch r.kind {
		case kindRequired:
			out = append(out, ozzo.Required.Error(fmt.Sprintf("The %s field is required.", label)))
		case kindEmail:
			// Format only; is.Email would also resolve the domain's MX record.
			out = append(out, ozzo.NewStringRule(govalidator.IsEmail, fmt.Sprintf("The %s must be a valid email address.", label)))
		case kindMin:
			out = append(out, ozzo.Length(r.min, 0).Error(fmt.Sprintf("The %s must be at least %d characters.", label, r.min)))
		case kindMatch:
			msg := r.message
			if msg == "" {
				msg = fmt.Sprintf("The %s format is invalid.", label)
			}
			out = append(out, ozzo.Match(r.pattern).Error(msg))
		case kindUnique:
			column := r.column
			if column == "" {
				column = field
			}
			out = append(out, ozzo.By(v.unique(ctx, column, label, lookupErr)))
		}
	}
	return out
}

func (v *Validator) unique(ctx context.Context, column, label string, lookupErr *error) ozzo.RuleFunc {
	return func(value interface{}) error {
		if isEmpty(value) {
			return nil
		}
		if v.exists == nil {
			*lookupErr = errors.New("no uniqueness lookup configured")
			return errUnique
		}
		taken, err := v.exists(ctx, column, value)
		if err != nil {
			*lookupErr = err
			return errUnique
		}
		if taken {
			return fmt.Errorf("The %s has already been taken.", label)
		}
		return nil
	}
}

func isEmpty(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	return false
}
