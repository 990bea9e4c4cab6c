package handler

import (
	"net/http"
	"time"

	"cardtable/backend/internal/config"
	"cardtable/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// adminTokenTTL is the lifetime of tokens issued by AdminLogin.
const adminTokenTTL = 12 * time.Hour

// AdminLoginInput defines the structure for the admin login.
type AdminLoginInput struct {
	Password string `json:"password" binding:"required" example:"password123"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// AdminLogin godoc
// @Summary      Log in as catalog admin
// @Description  Checks the admin password against ADMIN_PASSWORD_HASH and returns a bearer token for the admin routes.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        input body AdminLoginInput true "Admin credentials"
// @Success      200  {object}  TokenResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse "Invalid credentials"
// @Failure      503  {object}  ErrorResponse "Admin login disabled"
// @Router       /admin/login [post]
func AdminLogin(c *gin.Context) {
	var input AdminLoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash := config.AppConfig.AdminPasswordHash
	if hash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin login disabled"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := jwt.GenerateToken("admin", jwt.RoleAdmin, adminTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: token})
}
