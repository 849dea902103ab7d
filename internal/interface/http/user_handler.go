package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	userapp "github.com/adiprasetyo/playtube-backend/internal/application"
	"github.com/adiprasetyo/playtube-backend/internal/domain/entity"
	"github.com/adiprasetyo/playtube-backend/internal/interface/middleware"
	"github.com/adiprasetyo/playtube-backend/pkg/helpers"
	"github.com/adiprasetyo/playtube-backend/pkg/response"
	"github.com/adiprasetyo/playtube-backend/pkg/validation"
)

type UserHandler struct {
	Svc       *userapp.Service
	Logger    *logrus.Logger
	Cookies   *helpers.Manager
	UploadDir string
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger, cookieDomain string, cookieSecure bool, uploadDir string) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure), UploadDir: uploadDir}
}

type registerRequest struct {
	FullName string `form:"fullName" json:"fullName" binding:"required"`
	Email    string `form:"email" json:"email" binding:"required,email"`
	Username string `form:"username" json:"username" binding:"required,uname"`
	Password string `form:"password" json:"password" binding:"required,pwd"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResult struct {
	User         *entity.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// Register handles POST /users/register (multipart: fields + avatar/coverImage files).
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "All fields are required", validation.ToDetails(err))
		return
	}

	// An absent avatar is reported by the service so the uniqueness check
	// runs first.
	avatarPath := ""
	if avatar, aErr := c.FormFile("avatar"); aErr == nil {
		var err error
		if avatarPath, err = h.stageFile(c, avatar); err != nil {
			h.Logger.WithError(err).Error("staging avatar failed")
			response.Error(c, http.StatusInternalServerError, "failed to receive avatar file", nil)
			return
		}
	}

	coverPath := ""
	if cover, cErr := c.FormFile("coverImage"); cErr == nil {
		var sErr error
		if coverPath, sErr = h.stageFile(c, cover); sErr != nil {
			h.Logger.WithError(sErr).Warn("staging cover image failed")
			coverPath = ""
		}
	}

	u, err := h.Svc.Register(c.Request.Context(), userapp.RegisterInput{
		FullName:       req.FullName,
		Email:          req.Email,
		Username:       req.Username,
		Password:       req.Password,
		AvatarPath:     avatarPath,
		CoverImagePath: coverPath,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, u, "User registered successfully")
}

// Login handles POST /users/login. Tokens are set as httpOnly cookies and
// duplicated in the body for clients that cannot read cookies.
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, pair, err := h.Svc.Login(c.Request.Context(), userapp.LoginInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	h.Cookies.SetPair(c, pair.AccessToken, pair.RefreshToken)
	response.Success(c, http.StatusOK, loginResult{
		User:         u,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "User logged in successfully")
}

// Logout handles POST /users/logout (authenticated).
func (h *UserHandler) Logout(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	if err := h.Svc.Logout(c.Request.Context(), uid); err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.Cookies.Clear(c)
	response.Success(c, http.StatusOK, gin.H{}, "User logged out")
}

// Refresh handles POST /users/refresh-token. The token is read from the
// refreshToken cookie or from the JSON body.
func (h *UserHandler) Refresh(c *gin.Context) {
	token, _ := c.Cookie(helpers.RefreshTokenCookie)
	if token == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req.RefreshToken
		}
	}
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}

	_, pair, err := h.Svc.Refresh(c.Request.Context(), token)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.RefreshToken)
	response.Success(c, http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "Access token refreshed")
}

// CurrentUser handles GET /users/current-user (authenticated).
func (h *UserHandler) CurrentUser(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	u, err := h.Svc.CurrentUser(c.Request.Context(), uid)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, u, "Current user fetched successfully")
}

// Search handles GET /users/search?q=&size= (authenticated).
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	res, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		response.Error(c, http.StatusBadGateway, "search unavailable", nil)
		return
	}
	response.Success(c, http.StatusOK, res, "search results")
}

// stageFile writes the multipart file into the local staging dir; the media
// uploader consumes and removes it.
func (h *UserHandler) stageFile(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(h.UploadDir, uuid.NewString()+filepath.Ext(fh.Filename))
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (h *UserHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, userapp.ErrFieldsRequired),
		errors.Is(err, userapp.ErrIdentifierRequired),
		errors.Is(err, userapp.ErrAvatarRequired),
		errors.Is(err, userapp.ErrAvatarUpload):
		response.Error(c, http.StatusBadRequest, errMessage(err), nil)
	case errors.Is(err, userapp.ErrUserExists):
		response.Error(c, http.StatusConflict, errMessage(err), nil)
	case errors.Is(err, userapp.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, errMessage(err), nil)
	case errors.Is(err, userapp.ErrInvalidCredentials),
		errors.Is(err, userapp.ErrInvalidRefreshToken):
		response.Error(c, http.StatusUnauthorized, errMessage(err), nil)
	default:
		h.Logger.WithError(err).Error("request failed")
		response.Error(c, http.StatusInternalServerError, errMessage(err), nil)
	}
}

// errMessage keeps the client-facing messages aligned with the sentinel
// error texts without leaking unexpected internals.
func errMessage(err error) string {
	switch {
	case errors.Is(err, userapp.ErrFieldsRequired):
		return "All fields are required"
	case errors.Is(err, userapp.ErrIdentifierRequired):
		return "username or email is required"
	case errors.Is(err, userapp.ErrAvatarRequired):
		return "Avatar file is required"
	case errors.Is(err, userapp.ErrAvatarUpload):
		return "Failed to upload avatar file"
	case errors.Is(err, userapp.ErrUserExists):
		return "User with email or username already exists"
	case errors.Is(err, userapp.ErrUserNotFound):
		return "User does not exist"
	case errors.Is(err, userapp.ErrInvalidCredentials):
		return "Invalid user credentials"
	case errors.Is(err, userapp.ErrInvalidRefreshToken):
		return "Invalid refresh token"
	case errors.Is(err, userapp.ErrTokenIssuance):
		return "Something went wrong while generating refresh and access token"
	case errors.Is(err, userapp.ErrRegistration):
		return "Something went wrong while registering the user"
	default:
		return "internal server error"
	}
}
