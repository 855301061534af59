package spec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/supac/supac/pkg/engine"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks a parsed spec against its validate tags. The first failing
// field is reported as a config error for item.
func Validate(v any, item string) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return engine.NewConfigError("invalid entry", err).WithItem(item)
	}
	fe := verrs[0]
	return engine.NewConfigError(fmt.Sprintf("field %s failed the %q check", fe.Field(), fe.Tag()), nil).
		WithCode(engine.ErrCodeValidation).
		WithItem(item).
		WithDetail("field", fe.Field())
}
