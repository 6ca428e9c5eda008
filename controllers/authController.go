package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Pariharx7/CivicTrack/config"
	"github.com/Pariharx7/CivicTrack/middlewares"
	"github.com/Pariharx7/CivicTrack/models"
	"github.com/Pariharx7/CivicTrack/utils"
)

// UserStorer is the persistence surface the auth handlers depend on.
type UserStorer interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// AuthController handles registration, login and session endpoints.
type AuthController struct {
	users UserStorer
	jwt   config.JWTConfig
	env   string
	log   *zap.Logger
}

func NewAuthController(users UserStorer, jwt config.JWTConfig, env string, log *zap.Logger) *AuthController {
	return &AuthController{users: users, jwt: jwt, env: env, log: log}
}

// RegisterUser handles user registration
func (ac *AuthController) RegisterUser(c *gin.Context) {
	var input struct {
		Username    string `json:"username" binding:"required,min=5,max=50"`
		Email       string `json:"email" binding:"required,email"`
		PhoneNumber string `json:"phonenumber" binding:"required"`
		Password    string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, utils.NewValidationError(err.Error()))
		return
	}

	user := models.User{
		Username:    input.Username,
		Email:       input.Email,
		PhoneNumber: input.PhoneNumber,
		Password:    input.Password,
		Role:        models.RoleUser,
	}

	if err := user.HashPassword(); err != nil {
		ac.log.Error("failed to hash password", zap.Error(err))
		utils.RespondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := ac.users.Create(ctx, &user); err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.RespondCreated(c, "User registered successfully", gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"email":     user.Email,
		"role":      user.Role,
		"createdAt": user.CreatedAt,
	})
}

// LoginUser verifies credentials and issues a JWT, both in the response
// body and as an httpOnly cookie.
func (ac *AuthController) LoginUser(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, utils.NewValidationError(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := ac.users.FindByEmail(ctx, input.Email)
	if err != nil || !user.ComparePassword(input.Password) {
		utils.RespondError(c, utils.NewUnauthenticatedError("Invalid credentials"))
		return
	}

	token, err := utils.GenerateToken(user.ID.Hex(), string(user.Role), ac.jwt.Secret, ac.jwt.Expiration)
	if err != nil {
		ac.log.Error("failed to generate token", zap.Error(err))
		utils.RespondError(c, err)
		return
	}

	ac.setAuthCookie(c, token, int(ac.jwt.Expiration.Seconds()))

	utils.RespondOK(c, "Logged in successfully", gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
		"token":    token,
	})
}

// GetMe retrieves the authenticated user's information
func (ac *AuthController) GetMe(c *gin.Context) {
	userID, _, ok := middlewares.SubjectFrom(c)
	if !ok {
		utils.RespondError(c, utils.NewUnauthenticatedError("User not authenticated"))
		return
	}

	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		utils.RespondError(c, utils.NewValidationError("Invalid user ID"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := ac.users.FindByID(ctx, objectID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.RespondOK(c, "User fetched successfully", gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"email":     user.Email,
		"role":      user.Role,
		"createdAt": user.CreatedAt,
	})
}

// LogoutUser clears the auth_token cookie.
func (ac *AuthController) LogoutUser(c *gin.Context) {
	ac.setAuthCookie(c, "", -1)
	utils.RespondOK(c, "Logged out successfully", nil)
}

func (ac *AuthController) setAuthCookie(c *gin.Context, token string, maxAge int) {
	cookie := &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   ac.env == config.EnvProduction,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	}
	http.SetCookie(c.Writer, cookie)
}
