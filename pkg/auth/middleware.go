package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	tokenHeader = "Authorization"
	tokenPrefix = "Bearer "

	accountIDKey     = "account_id"
	walletAddressKey = "wallet_address"
)

// RequireAuth is a gin middleware that validates the bearer token and injects
// the account identity into the request context.
func RequireAuth(signer *Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(tokenHeader)
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		if !strings.HasPrefix(authHeader, tokenPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		token := strings.TrimPrefix(authHeader, tokenPrefix)
		claims, err := signer.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(accountIDKey, claims.Subject)
		c.Set(walletAddressKey, claims.WalletAddress)
		c.Next()
	}
}

// AccountID retrieves the authenticated account ID from the gin context.
func AccountID(c *gin.Context) (string, bool) {
	id, ok := c.Get(accountIDKey)
	if !ok {
		return "", false
	}
	s, ok := id.(string)
	return s, ok
}

// WalletAddress retrieves the authenticated wallet address from the gin context.
func WalletAddress(c *gin.Context) (string, bool) {
	addr, ok := c.Get(walletAddressKey)
	if !ok {
		return "", false
	}
	s, ok := addr.(string)
	return s, ok
}
