package utils

import (
	"errors"
	"reflect"
	"strings"

	"gradient/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// labeled is implemented by enum types with a fixed set of labels.
type labeled interface {
	Valid() bool
}

var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	RegisterCustomValidators(v)
	return v
}

func RegisterCustomValidators(v *validator.Validate) {
	v.RegisterTagNameFunc(jsonFieldName)
	v.RegisterValidation("known", ValidateKnownLabel)
}

// InitValidator registers the custom rules with gin's binding engine too.
func InitValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterCustomValidators(v)
	}
}

// ValidateKnownLabel accepts enum values whose Valid method reports true.
func ValidateKnownLabel(fl validator.FieldLevel) bool {
	l, ok := fl.Field().Interface().(labeled)
	if !ok {
		return false
	}
	return l.Valid()
}

// ValidateStruct checks the validate tags on v and reports the first
// failing field as a *model.ValidationError.
func ValidateStruct(entity string, v interface{}) error {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &model.ValidationError{Entity: entity, Field: fe.Field(), Reason: reasonFor(fe.Tag())}
	}
	return &model.ValidationError{Entity: entity, Field: "", Reason: err.Error()}
}

func reasonFor(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "known":
		return "has an unknown value"
	}
	return "failed " + tag
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}
