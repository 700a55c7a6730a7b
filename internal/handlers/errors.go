package handlers

import (
	"net/http"

	"github.com/go-authgate/ssocenter/internal/services"

	"github.com/gin-gonic/gin"
)

const clientAuthRealm = `Basic realm="ssocenter"`

// respondOAuthError writes an RFC 6749 §5.2 error body.
func respondOAuthError(c *gin.Context, err error) {
	oe := services.ToOAuthError(err)
	c.JSON(oe.Status, oe)
}

// respondTokenError is respondOAuthError for the token endpoint. A client
// that authenticated with HTTP Basic gets invalid_client as 401 with a
// WWW-Authenticate challenge (RFC 6749 §5.2); form credentials get 400.
func respondTokenError(c *gin.Context, err error, viaBasic bool) {
	oe := services.ToOAuthError(err)
	if viaBasic && oe.Code == services.ErrInvalidClient.Error() {
		oe.Status = http.StatusUnauthorized
		c.Header("WWW-Authenticate", clientAuthRealm)
	}
	c.JSON(oe.Status, oe)
}

func respondInvalidRequest(c *gin.Context, description string) {
	c.JSON(http.StatusBadRequest, services.OAuthError{
		Code:        services.ErrInvalidRequest.Error(),
		Description: description,
	})
}
