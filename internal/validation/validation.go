package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zimbuild/sitebackend/internal/model"
)

const (
	tagNameMessage   = "message"
	tagNameJSON      = "json"
	tagNameForm      = "form"
	validationFailed = "Validation failed"

	tagISO8601    = "iso8601"
	tagPhone      = "phone"
	tagExperience = "experience"
)

var (
	phoneCharactersExpression = regexp.MustCompile(`[\s\-().]`)
	phoneShapeExpression      = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

	iso8601Layouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// Errors lists every rejected field of a payload.
type Errors []FieldError

func (errs Errors) Error() string {
	if len(errs) == 0 {
		return validationFailed
	}
	parts := make([]string, 0, len(errs))
	for _, fieldError := range errs {
		parts = append(parts, fieldError.Field+": "+fieldError.Message)
	}
	return validationFailed + ": " + strings.Join(parts, "; ")
}

// Message is the summary shown alongside the itemized errors.
func (errs Errors) Message() string {
	return validationFailed
}

// Validator evaluates validate struct tags. A `message` tag on a field overrides the generated message.
type Validator struct {
	engine *validator.Validate
}

// New constructs a Validator with the custom rules registered.
func New() *Validator {
	engine := validator.New(validator.WithRequiredStructEnabled())
	engine.RegisterTagNameFunc(fieldName)
	mustRegister(engine, tagISO8601, validateISO8601)
	mustRegister(engine, tagPhone, validatePhone)
	mustRegister(engine, tagExperience, validateExperience)
	return &Validator{engine: engine}
}

func mustRegister(engine *validator.Validate, tag string, function validator.Func) {
	if err := engine.RegisterValidation(tag, function); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// Struct evaluates every rule of target and returns Errors naming all violated fields, or nil.
func (v *Validator) Struct(target any) error {
	err := v.engine.Struct(target)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	targetType := reflect.TypeOf(target)
	for targetType.Kind() == reflect.Pointer {
		targetType = targetType.Elem()
	}

	collected := make(Errors, 0, len(validationErrors))
	seen := make(map[string]struct{}, len(validationErrors))
	for _, fieldError := range validationErrors {
		field := fieldPath(fieldError.Namespace())
		if _, duplicate := seen[field]; duplicate {
			continue
		}
		seen[field] = struct{}{}
		collected = append(collected, FieldError{
			Field:   field,
			Message: messageFor(targetType, fieldError),
			Value:   rejectedValue(fieldError.Value()),
		})
	}
	return collected
}

func fieldName(field reflect.StructField) string {
	for _, tagName := range []string{tagNameJSON, tagNameForm} {
		name := strings.SplitN(field.Tag.Get(tagName), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

// fieldPath drops the root struct name from a namespace such as "InquiryRequest.email".
func fieldPath(namespace string) string {
	if index := strings.Index(namespace, "."); index >= 0 {
		return namespace[index+1:]
	}
	return namespace
}

func messageFor(rootType reflect.Type, fieldError validator.FieldError) string {
	if structField, found := lookupField(rootType, fieldError.StructNamespace()); found {
		if message := structField.Tag.Get(tagNameMessage); message != "" {
			return message
		}
	}
	return defaultMessage(fieldError.Field(), fieldError)
}

func lookupField(rootType reflect.Type, structNamespace string) (reflect.StructField, bool) {
	segments := strings.Split(structNamespace, ".")
	if len(segments) < 2 {
		return reflect.StructField{}, false
	}
	current := rootType
	var structField reflect.StructField
	for _, segment := range segments[1:] {
		if bracket := strings.Index(segment, "["); bracket >= 0 {
			segment = segment[:bracket]
		}
		for current.Kind() == reflect.Pointer || current.Kind() == reflect.Slice {
			current = current.Elem()
		}
		if current.Kind() != reflect.Struct {
			return reflect.StructField{}, false
		}
		field, found := current.FieldByName(segment)
		if !found {
			return reflect.StructField{}, false
		}
		structField = field
		current = field.Type
	}
	return structField, true
}

func defaultMessage(field string, fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required", "required_if", "required_unless", "required_with":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Please provide a valid email"
	case tagPhone:
		return "Please provide a valid phone number"
	case tagExperience:
		return "Please select valid experience range"
	case tagISO8601:
		return fmt.Sprintf("%s must be an ISO 8601 date", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fieldError.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fieldError.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fieldError.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fieldError.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(strings.Fields(fieldError.Param()), ", "))
	case "numeric", "number":
		return fmt.Sprintf("%s must be a number", field)
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func rejectedValue(value any) any {
	reflected := reflect.ValueOf(value)
	if !reflected.IsValid() {
		return nil
	}
	if reflected.Kind() == reflect.Pointer {
		if reflected.IsNil() {
			return nil
		}
		reflected = reflected.Elem()
	}
	// Named string types such as json.Number must not reach the encoder as themselves.
	if reflected.Kind() == reflect.String {
		return reflected.String()
	}
	return reflected.Interface()
}

func validateISO8601(fieldLevel validator.FieldLevel) bool {
	_, ok := ParseISO8601(fieldLevel.Field().String())
	return ok
}

// ParseISO8601 accepts full timestamps and calendar dates.
func ParseISO8601(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range iso8601Layouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func validatePhone(fieldLevel validator.FieldLevel) bool {
	cleaned := phoneCharactersExpression.ReplaceAllString(fieldLevel.Field().String(), "")
	return phoneShapeExpression.MatchString(cleaned)
}

func validateExperience(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()
	for _, experience := range model.ExperienceRanges {
		if value == experience {
			return true
		}
	}
	return false
}
