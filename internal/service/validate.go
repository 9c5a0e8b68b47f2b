package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/sakif/social-demo/internal/apperror"
)

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves every request.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// "required" accepts "   "; "notblank" does not.
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// checkInput validates input against its `validate` tags and turns the first
// failure into an apperror.ValidationFailed.
//
// messages maps "Field.tag" (or just "Field") to the client-facing message.
// Input structs list their fields in the order they should be reported, so
// a missing title is reported before a short text.
func checkInput(input any, messages map[string]string) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("service: validating input: %w", err)
	}

	first := verrs[0]
	msg, ok := messages[first.Field()+"."+first.Tag()]
	if !ok {
		msg, ok = messages[first.Field()]
	}
	if !ok {
		msg = first.Error()
	}
	return apperror.ValidationFailed(strings.ToLower(first.Field()), msg)
}
