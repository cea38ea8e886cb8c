package middleware

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func init() {
	// Report errors under the JSON field name (user_id, not UserID).
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ErrorResponse is the error payload shape: a summary plus per-field messages.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors"`
}

// ValidateRequest validates obj and returns field -> message for every
// failing rule, or nil when the request is valid.
func ValidateRequest(obj any) map[string]string {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	validationErrors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		validationErrors[err.Field()] = getErrorMsg(err)
	}
	return validationErrors
}

func getErrorMsg(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gt":
		return "Value must be greater than " + err.Param()
	case "gte":
		return "Value must be greater than or equal to " + err.Param()
	default:
		return "Invalid value"
	}
}

func RespondWithValidationError(c *gin.Context, validationErrors map[string]string) {
	summary := "Invalid request data"
	for _, msg := range validationErrors {
		summary = msg
		break
	}
	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:  summary,
		Errors: validationErrors,
	})
}

// RespondWithError writes a single-field error payload with the given status.
func RespondWithError(c *gin.Context, code int, field, message string) {
	c.JSON(code, ErrorResponse{
		Error:  message,
		Errors: map[string]string{field: message},
	})
}
