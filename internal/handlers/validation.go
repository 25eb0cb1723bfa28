package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "github.com/charlesng35/voiceclone/pkg/errors"
	"github.com/charlesng35/voiceclone/pkg/response"
	appvalidator "github.com/charlesng35/voiceclone/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation.
// Every rule violation is reported at once so clients can fix a payload in a
// single round trip. When binding or validation fails, an error response is
// written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, apperrors.NewValidation("invalid JSON payload"))
		return false
	}
	return validatePayload(c, dest)
}

// validatePayload runs struct validation only, for payloads assembled by hand
// (multipart forms).
func validatePayload(c *gin.Context, dest any) bool {
	err := appvalidator.ValidateStruct(dest)
	if err == nil {
		return true
	}

	var failures appvalidator.ValidationErrors
	if errors.As(err, &failures) && len(failures) > 0 {
		response.Error(c, apperrors.NewValidation("request validation failed", failures.Messages()...))
		return false
	}

	response.Error(c, apperrors.NewValidation("invalid request payload"))
	return false
}
