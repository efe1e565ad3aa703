package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderServerAddress carries the serving wallet on server-scoped routes.
	HeaderServerAddress = "X-Server-Address"
	// ContextServerAddressKey stores the resolved serving wallet.
	ContextServerAddressKey = "serverAddress"
)

// ServerAddress resolves the serving wallet from the header, then the serverAddress query
// parameter. Validation is left to the services.
func ServerAddress() gin.HandlerFunc {
	return func(c *gin.Context) {
		address := strings.TrimSpace(c.GetHeader(HeaderServerAddress))
		if address == "" {
			address = strings.TrimSpace(c.Query("serverAddress"))
		}
		c.Set(ContextServerAddressKey, address)
		c.Next()
	}
}

// ServerAddressFromContext returns the wallet resolved by ServerAddress.
func ServerAddressFromContext(c *gin.Context) string {
	return c.GetString(ContextServerAddressKey)
}
