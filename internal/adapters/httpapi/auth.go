package httpapi

import (
	"errors"
	"net/http"

	"github.com/connectify/connectify/internal/domain"
	"github.com/connectify/connectify/internal/store"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const sessionUserKey = "user_id"

// AuthRequired resolves the session cookie to a verified user identity and
// stores it in the gin context. Everything realtime trusts this identity,
// never one claimed in a payload.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		uid, _ := sess.Get(sessionUserKey).(string)
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set("user_id", uid)
		c.Next()
	}
}

func currentUserID(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString("user_id"))
}

type signupRequest struct {
	Email    string `json:"email" binding:"required"`
	FullName string `json:"fullName" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

func (a *API) handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signup payload"})
		return
	}

	user, err := domain.NewUser(req.Email, req.FullName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	user.PasswordHash = string(hash)

	if err := a.Store.CreateUser(c.Request.Context(), user); err != nil {
		log.Warn().Err(err).Str("module", "httpapi").Msg("signup failed")
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	a.startSession(c, user.ID)
	c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *API) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid login payload"})
		return
	}

	user, err := a.Store.UserByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	a.startSession(c, user.ID)
	c.JSON(http.StatusOK, user)
}

func (a *API) handleLogout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	if err := sess.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (a *API) handleMe(c *gin.Context) {
	user, err := a.Store.UserByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (a *API) startSession(c *gin.Context, uid domain.UserID) {
	sess := sessions.Default(c)
	sess.Set(sessionUserKey, string(uid))
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "httpapi").Msg("save session")
	}
}
