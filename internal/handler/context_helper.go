package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
	"github.com/noah-isme/studygen-api/pkg/response"
)

var requestValidator = validator.New()

// bindJSON decodes and validates the request body, writing the error response
// itself when either step fails.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return false
	}
	if err := requestValidator.Struct(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error()))
		return false
	}
	return true
}

// splitFormValues flattens repeated and comma separated form values.
func splitFormValues(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
