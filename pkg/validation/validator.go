// Package validation checks workflow definitions before they are built into graphs.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator interface for cross-field checks that tags cannot express
// PRINCIPLES:
// - ISP: Simple interface with single method
// - DIP: Depend on interface, not concrete types
type Validator interface {
	Validate() error
}

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	nodeIDPattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
	channelPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)
	functionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// validate is the shared validator instance with the workflow tags registered.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterValidation("node_id", matches(nodeIDPattern, 100))
	validate.RegisterValidation("channel_name", matches(channelPattern, 100))
	validate.RegisterValidation("function_name", matches(functionPattern, 64))

	// Report fields by their json names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

func matches(re *regexp.Regexp, maxLen int) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && len(s) <= maxLen && re.MatchString(s)
	}
}

// ValidateStruct runs tag validation and then, if s implements Validator, its
// cross-field checks. Failures are returned as ValidationErrors.
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return formatValidationErrors(fieldErrs)
		}
		return err
	}
	if v, ok := s.(Validator); ok {
		return v.Validate()
	}
	return nil
}

// ValidationConfig holds validation configuration
type ValidationConfig struct {
	MaxErrors int `json:"max_errors"`
}

// DefaultValidationConfig returns default validation configuration
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{MaxErrors: 10}
}

// ValidateWithConfig is ValidateStruct with the error list truncated to
// config.MaxErrors.
func ValidateWithConfig(s interface{}, config *ValidationConfig) error {
	if config == nil {
		config = DefaultValidationConfig()
	}
	err := ValidateStruct(s)
	var list ValidationErrors
	if errors.As(err, &list) && config.MaxErrors > 0 && len(list) > config.MaxErrors {
		return list[:config.MaxErrors]
	}
	return err
}

func formatValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, 0, len(errs))
	for _, fe := range errs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, ValidationError{
			Field:   field,
			Value:   fe.Value(),
			Message: errorMessage(fe),
		})
	}
	return out
}

// errorMessage returns a human-readable error message
func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("minimum value/length is %s", fe.Param())
	case "max":
		return fmt.Sprintf("maximum value/length is %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "node_id":
		return "must be a valid node name (letters, digits, underscore, hyphen)"
	case "channel_name":
		return "must be a valid channel name"
	case "function_name":
		return "must be a valid function name (lowercase, digits, underscore)"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}
