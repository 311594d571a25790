package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/entitypipe/errors"
)

// DataResponse is the success envelope of the listing endpoints.
type DataResponse struct {
	Data any `json:"data"`
}

// RespondWithError writes err as an errors.ErrorResponse. AppErrors keep
// their HTTP status; anything else is a 500.
func RespondWithError(c *gin.Context, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		c.JSON(status, appErr.ToResponse())
		return
	}
	c.JSON(http.StatusInternalServerError, errors.Internal(err).ToResponse())
}

// RespondOK writes data wrapped in a DataResponse.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}
