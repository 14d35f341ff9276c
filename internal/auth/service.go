package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Service authenticates API callers. There are no user accounts: access
// is granted to holders of a configured machine token, either directly
// or via a short-lived JWT exchanged for one.
type Service struct {
	jwtHandler  *JWTHandler
	tokenGen    *MachineTokenGenerator
	tokenHashes map[string]struct{}
}

func NewService(jwtSecret string, accessTTL time.Duration, machineTokenHashes []string) *Service {
	hashes := make(map[string]struct{}, len(machineTokenHashes))
	for _, h := range machineTokenHashes {
		hashes[strings.ToLower(h)] = struct{}{}
	}

	return &Service{
		jwtHandler:  NewJWTHandler(jwtSecret, accessTTL),
		tokenGen:    NewMachineTokenGenerator(),
		tokenHashes: hashes,
	}
}

// ValidateMachineToken checks a presented machine token against the
// configured hashes and returns its ID portion.
func (s *Service) ValidateMachineToken(token string) (string, error) {
	if !s.tokenGen.ValidateTokenFormat(token) {
		return "", fmt.Errorf("malformed machine token")
	}

	hash := s.tokenGen.HashToken(token)
	if _, ok := s.tokenHashes[hash]; !ok {
		return "", fmt.Errorf("unknown machine token")
	}

	// enc_<uuid>_<secret>
	parts := strings.SplitN(token, "_", 3)
	return parts[1], nil
}

// ExchangeToken issues a JWT access token for a valid machine token.
func (s *Service) ExchangeToken(machineToken string) (string, error) {
	tokenID, err := s.ValidateMachineToken(machineToken)
	if err != nil {
		return "", err
	}
	return s.jwtHandler.GenerateAccessToken(tokenID)
}

// Middleware enforces Bearer authentication: a JWT access token first,
// a raw machine token as fallback.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization header format",
			})
			c.Abort()
			return
		}

		token := parts[1]

		if claims, err := s.jwtHandler.ValidateAccessToken(token); err == nil {
			c.Set("token_id", claims.TokenID)
			c.Next()
			return
		}

		tokenID, err := s.ValidateMachineToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set("token_id", tokenID)
		c.Next()
	}
}
