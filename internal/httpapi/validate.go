package httpapi

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// validateStruct runs the declared `validate` tags on a decoded request
// body. The service layer re-checks domain rules; this catches shape
// errors before they get there.
func validateStruct(payload any) error {
	return validate.Struct(payload)
}
