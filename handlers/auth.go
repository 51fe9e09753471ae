package handlers

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"voltswap/apperr"
	"voltswap/models"
)

type AuthHandler struct {
	DB *gorm.DB
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid_body", err.Error()))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, apperr.Internal("failed to hash password", err))
		return
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     models.RoleDriver,
	}
	if result := h.DB.Create(&user); result.Error != nil {
		respondError(c, apperr.Conflict("user_exists", "username or email already exists"))
		return
	}

	respondCreated(c, gin.H{"id": user.ID, "username": user.Username}, "registered")
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid_body", err.Error()))
		return
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		respondError(c, apperr.Unauthorized("invalid_credentials", "invalid credentials"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		respondError(c, apperr.Unauthorized("invalid_credentials", "invalid credentials"))
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Set("role", string(user.Role))
	if err := session.Save(); err != nil {
		respondError(c, apperr.Internal("failed to save session", err))
		return
	}

	respondOK(c, gin.H{"id": user.ID, "role": user.Role}, "logged in")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	respondOK(c, nil, "logged out")
}
