package request

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/campus-borrow-backend/internal/schedule"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags on gin's validator engine
// and makes field errors report JSON names instead of Go field names.
//
//   - hhmm: strict 24-hour "HH:MM"
//   - ymd:  strict "YYYY-MM-DD"
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form", "uri"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})

		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			_, err := schedule.ParseClock(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
			_, err := schedule.ParseDate(fl.Field().String())
			return err == nil
		})
	})
}

// Validate checks v against its binding tags outside of a gin request.
func Validate(v any) error {
	RegisterValidators()
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return BindError(err)
	}
	return nil
}

// BindError converts a gin binding failure into a 422 validation error.
// Errors that are not validator errors (malformed JSON, wrong types) are reported
// against the "body" field.
func BindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields := apperror.FieldErrors{}
		fields.Add("body", "The request body is malformed.")
		return fields.Err()
	}

	fields := apperror.FieldErrors{}
	for _, fe := range verrs {
		fields.Add(fe.Field(), fieldMessage(fe))
	}
	return fields.Err()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", fe.Field())
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("The %s field must be at least %s.", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", fe.Field())
	case "uuid":
		return fmt.Sprintf("The %s field must be a valid UUID.", fe.Field())
	case "hhmm":
		return fmt.Sprintf("The %s field must match the format H:i.", fe.Field())
	case "ymd":
		return fmt.Sprintf("The %s field must match the format Y-m-d.", fe.Field())
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", fe.Field())
	default:
		return fmt.Sprintf("The %s field is invalid.", fe.Field())
	}
}
