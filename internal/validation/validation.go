// Package validation checks write payloads against the entity's field declarations.
package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"CrmAPI/internal/domain"
	"CrmAPI/internal/model"

	"github.com/go-playground/validator/v10"
)

// Checker answers uniqueness and reference lookups. *store.Store satisfies it.
type Checker interface {
	Exists(ctx context.Context, e *model.Entity, match map[string]any, exceptID int64) (bool, error)
}

type Validator struct {
	v   *validator.Validate
	db  Checker
	reg *model.Registry
}

func New(reg *model.Registry, db Checker) *Validator {
	return &Validator{v: validator.New(), db: db, reg: reg}
}

// Mode selects how missing keys are treated.
type Mode int

const (
	// Create requires every "required" field and fills declared defaults.
	Create Mode = iota
	// Update checks only the keys present in the payload.
	Update
)

// Validate returns the fillable subset of payload converted to column types.
// Keys that are not fillable are dropped. id excludes the record itself from unique checks.
func (v *Validator) Validate(ctx context.Context, e *model.Entity, payload map[string]any, id int64, mode Mode) (model.Record, error) {
	rec := model.Record{}
	verr := domain.NewValidationError()

	for _, f := range e.FillableFields() {
		raw, present := payload[f.Name]
		required := hasRule(f.Rules, "required")
		if !present {
			if mode == Create {
				if required {
					verr.Add(f.Name, fmt.Sprintf("The %s field is required.", attribute(f.Name)))
				} else if f.Default != nil {
					rec[f.Name] = f.Default
				}
			}
			continue
		}

		val, err := f.Normalize(raw)
		if err != nil {
			verr.Add(f.Name, fmt.Sprintf("The %s field %s.", attribute(f.Name), err.Error()))
			continue
		}
		if isBlank(val) {
			if required {
				verr.Add(f.Name, fmt.Sprintf("The %s field is required.", attribute(f.Name)))
				continue
			}
			rec[f.Name] = nil
			continue
		}
		if f.Type == model.TypeEnum && !f.AllowsValue(val.(string)) {
			verr.Add(f.Name, fmt.Sprintf("The selected %s is invalid.", attribute(f.Name)))
			continue
		}
		if msg := v.checkRules(f, val); msg != "" {
			verr.Add(f.Name, msg)
			continue
		}
		rec[f.Name] = val
	}

	if verr.Empty() {
		if err := v.checkLookups(ctx, e, rec, id, verr); err != nil {
			return nil, err
		}
	}
	if !verr.Empty() {
		return nil, verr
	}
	return rec, nil
}

// checkRules runs the declared validator tags other than "required".
func (v *Validator) checkRules(f *model.Field, val any) string {
	tags := make([]string, 0, 4)
	for _, t := range strings.Split(f.Rules, ",") {
		t = strings.TrimSpace(t)
		if t == "" || t == "required" || t == "omitempty" {
			continue
		}
		tags = append(tags, t)
	}
	if len(tags) == 0 {
		return ""
	}
	err := v.v.Var(val, strings.Join(tags, ","))
	if err == nil {
		return ""
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return message(f, fieldErrs[0])
	}
	return fmt.Sprintf("The %s field is invalid.", attribute(f.Name))
}

func (v *Validator) checkLookups(ctx context.Context, e *model.Entity, rec model.Record, id int64, verr *domain.ValidationError) error {
	for _, f := range e.FillableFields() {
		val, ok := rec[f.Name]
		if !ok || val == nil {
			continue
		}
		if f.Unique {
			taken, err := v.db.Exists(ctx, e, map[string]any{f.Name: val}, id)
			if err != nil {
				return fmt.Errorf("unique %s.%s: %w", e.Name, f.Name, err)
			}
			if taken {
				verr.Add(f.Name, fmt.Sprintf("The %s has already been taken.", attribute(f.Name)))
			}
		}
		if f.Type == model.TypeRef {
			target := v.reg.Get(f.References)
			if target == nil {
				continue
			}
			found, err := v.db.Exists(ctx, target, map[string]any{"id": val}, 0)
			if err != nil {
				return fmt.Errorf("reference %s.%s: %w", e.Name, f.Name, err)
			}
			if !found {
				verr.Add(f.Name, fmt.Sprintf("The selected %s is invalid.", attribute(f.Name)))
			}
		}
	}
	return nil
}

func message(f *model.Field, fe validator.FieldError) string {
	name := attribute(f.Name)
	switch fe.Tag() {
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", name)
	case "url":
		return fmt.Sprintf("The %s field must be a valid URL.", name)
	case "max":
		if f.IsNumeric() {
			return fmt.Sprintf("The %s field must not be greater than %s.", name, fe.Param())
		}
		return fmt.Sprintf("The %s field must not be greater than %s characters.", name, fe.Param())
	case "min":
		if f.IsNumeric() {
			return fmt.Sprintf("The %s field must be at least %s.", name, fe.Param())
		}
		return fmt.Sprintf("The %s field must be at least %s characters.", name, fe.Param())
	}
	return fmt.Sprintf("The %s field is invalid.", name)
}

func attribute(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

func hasRule(rules, rule string) bool {
	for _, r := range strings.Split(rules, ",") {
		if strings.TrimSpace(r) == rule {
			return true
		}
	}
	return false
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
