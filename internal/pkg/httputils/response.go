// Package httputils provides HTTP utility functions.
package httputils

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/anchora/pkg/utils/errors"
	"github.com/kart-io/anchora/pkg/utils/response"
)

// WriteResponse writes the response to the client.
// It handles both success and error cases, ensuring consistent response format.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	if err != nil {
		var resp *response.Response
		var errno *errors.Errno
		if stderrors.As(err, &errno) {
			resp = response.Err(errno)
		} else {
			resp = response.Err(errors.ErrInternal.WithMessage(err.Error()))
		}
		defer response.Release(resp)
		if requestID := c.GetString(RequestIDKey); requestID != "" {
			resp.WithRequestID(requestID)
		}
		c.JSON(resp.HTTPStatus(), resp)
		return
	}

	// data can be *response.Response (e.g. from response.Page) or raw data
	if resp, ok := data.(*response.Response); ok {
		defer response.Release(resp)
		c.JSON(resp.HTTPStatus(), resp)
		return
	}

	resp := response.Success(data)
	defer response.Release(resp)
	c.JSON(resp.HTTPStatus(), resp)
}

// RequestIDKey is the gin context key carrying the per-request identifier.
const RequestIDKey = "X-Request-ID"
