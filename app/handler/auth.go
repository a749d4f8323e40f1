package handler

import (
	"net/http"

	"stream-porter/app/auth"
	"stream-porter/app/config"
	"stream-porter/app/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	db         *gorm.DB
	jwtService *auth.JWTService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, db *gorm.DB) *AuthHandler {
	return &AuthHandler{
		db:         db,
		jwtService: auth.NewJWTService(cfg),
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Error(400, "用户名和密码不能为空"))
		return
	}

	var user model.ApiUser
	if err := h.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, Error(401, "用户名或密码错误"))
		return
	}

	if !auth.VerifyPassword(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, Error(401, "用户名或密码错误"))
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Error(500, "生成令牌失败"))
		return
	}

	c.JSON(http.StatusOK, Success(gin.H{
		"token":    token,
		"username": user.Username,
	}, "登录成功"))
}

// RefreshToken 刷新令牌
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Error(400, "令牌不能为空"))
		return
	}

	token, err := h.jwtService.RefreshToken(req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, Error(401, err.Error()))
		return
	}

	c.JSON(http.StatusOK, Success(gin.H{"token": token}, "刷新成功"))
}

// Me 返回当前登录用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, Success(gin.H{
		"user_id":  c.GetUint("user_id"),
		"username": c.GetString("username"),
		"is_admin": c.GetBool("is_admin"),
	}, "ok"))
}
