package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/studhelper/studhelper/pkg/errors"
	"github.com/studhelper/studhelper/pkg/response"
)

// BotTokenHeader carries the shared secret of the chat transport.
const BotTokenHeader = "X-Bot-Token"

// BotToken admits requests whose X-Bot-Token matches token. An empty token rejects everything.
func BotToken(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		supplied := []byte(c.GetHeader(BotTokenHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(supplied, expected) != 1 {
			response.Error(c, errors.ErrUnauthorized)
			return
		}
		c.Next()
	}
}
