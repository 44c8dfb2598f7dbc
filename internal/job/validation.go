package job

import (
	"net/http"

	"github.com/joshu-sajeev/queuectl/common"
	"github.com/joshu-sajeev/queuectl/middleware"
)

var validate = middleware.NewValidator()

func validateRequest[T any](req *T) error {
	if err := validate.Struct(req); err != nil {
		return common.APIError{
			Status:  http.StatusBadRequest,
			Message: "validation failed",
			Fields:  middleware.FormatValidationErrors(err),
			Err:     ErrValidation,
		}
	}
	return nil
}
