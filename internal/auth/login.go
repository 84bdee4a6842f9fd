package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const tokenLifetime = 24 * time.Hour

// LoginRequest is the login request body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// LoginResponse is the login response.
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a gateway JWT. Standalone deployments accept any
// username/password here; production deployments replace this route
// with tokens minted by the admin backend carrying the same claims.
func Login(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}

		role := Role(req.Role)
		if role == "" {
			role = RoleStudent
		}
		if role != RoleAdmin && role != RoleStudent {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Unknown role",
			})
			return
		}

		token, err := IssueToken(jwtSecret, req.Username, role, tokenLifetime)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to generate token",
			})
			return
		}

		c.JSON(http.StatusOK, LoginResponse{
			Token:  token,
			UserID: req.Username,
			Role:   string(role),
		})
	}
}
