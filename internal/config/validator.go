package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/reviewgate/reviewgate/internal/domain/review"
)

// RegisterCustomValidators registers reviewgate-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// end_state: a review state, optionally qualified with ":commit"
	if err := v.RegisterValidation("end_state", validateEndState); err != nil {
		return fmt.Errorf("failed to register end_state validator: %w", err)
	}
	return nil
}

// validateEndState validates one end-state token.
// Valid forms: "<state>" or "<state>:commit".
func validateEndState(fl validator.FieldLevel) bool {
	token := fl.Field().String()
	base, qualifier, qualified := strings.Cut(token, ":")
	if !review.ValidState(review.State(base)) {
		return false
	}
	if qualified && qualifier != review.CommitQualifier {
		return false
	}
	return true
}

// Validate validates the Config using struct tags and cross-field rules.
// Returns an error with actionable messages if validation fails.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		return errors.New("storage.path is required for the sqlite driver")
	}
	return nil
}

// formatValidationErrors converts validator errors into actionable messages.
func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Namespace())
		field = strings.TrimPrefix(field, "config.")
		switch fe.Tag() {
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "end_state":
			msgs = append(msgs, fmt.Sprintf("%s: %q is not a valid end-state token (expected a review state, optionally qualified with \":commit\")", field, fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
}
