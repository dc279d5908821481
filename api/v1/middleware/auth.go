package middleware

import (
	"errors"
	"strings"

	"fleetdeploy/internal/auth"
	"fleetdeploy/internal/httpx"
	"fleetdeploy/internal/model"
	"fleetdeploy/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// CredentialHeader carries the machine's bearer credential on agent calls
const CredentialHeader = "X-Machine-Credential"

// AuthRequired is a middleware that validates JWT token
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httpx.FailErr(c, httpx.ErrUnauthorized("missing authorization header"))
			c.Abort()
			return
		}

		// Check Bearer prefix
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httpx.FailErr(c, httpx.ErrUnauthorized("invalid authorization header format"))
			c.Abort()
			return
		}

		tokenString := parts[1]

		// Parse and validate token
		claims, err := auth.ParseToken(tokenString)
		if err != nil {
			// Determine error type
			if errors.Is(err, jwt.ErrTokenExpired) {
				httpx.FailErr(c, httpx.ErrTokenExpired("token expired"))
			} else {
				httpx.FailErr(c, httpx.ErrInvalidToken("invalid token"))
			}
			c.Abort()
			return
		}

		// Set user info in context
		c.Set("uid", claims.UID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// MachineAuth authenticates an agent by its machine credential and records
// the contact as a liveness signal.
func MachineAuth(machines *service.MachineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := c.GetHeader(CredentialHeader)
		if credential == "" {
			httpx.FailErr(c, httpx.ErrUnauthorized("missing machine credential"))
			c.Abort()
			return
		}

		machine, err := machines.AuthenticateByCredential(credential)
		if err != nil {
			if errors.Is(err, service.ErrMachineNotFound) {
				httpx.FailErr(c, httpx.ErrInvalidToken("invalid machine credential"))
			} else {
				httpx.FailErr(c, httpx.ErrDatabaseError("failed to authenticate machine", err))
			}
			c.Abort()
			return
		}

		// Liveness bookkeeping must not block the request
		_ = machines.TouchLastSeen(machine.ID)

		c.Set("machine", machine)
		c.Next()
	}
}

// MachineFromContext returns the authenticated machine set by MachineAuth
func MachineFromContext(c *gin.Context) *model.Machine {
	if v, ok := c.Get("machine"); ok {
		if m, ok := v.(*model.Machine); ok {
			return m
		}
	}
	return nil
}
