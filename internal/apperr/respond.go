package apperr

import "github.com/gin-gonic/gin"

// Respond aborts the request with the status class and client-safe body for
// the supplied error. Wrapped causes stay out of the payload.
func Respond(contextGin *gin.Context, err error) {
	code := CodeOf(err)
	if code == "" {
		code = "internal"
	}
	contextGin.AbortWithStatusJSON(HTTPStatus(err), gin.H{
		"error":   code,
		"message": MessageOf(err),
	})
}
