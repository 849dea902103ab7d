package modules

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/adiprasetyo/playtube-backend/internal/interface/http"
	"github.com/adiprasetyo/playtube-backend/internal/interface/middleware"
	"github.com/adiprasetyo/playtube-backend/pkg/helpers"
)

// UserModule wires the user HTTP handlers and auth middleware into routes.
// Public: POST /users/register, /users/login, /users/refresh-token
// Protected: POST /users/logout, GET /users/current-user, GET /users/search
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
	Redis   *redis.Client
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager, rdb *redis.Client) *UserModule {
	return &UserModule{Handler: h, JWT: jwt, Redis: rdb}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	users := rg.Group("/users")

	users.POST("/register", m.Handler.Register)
	users.POST("/login", m.Handler.Login)
	users.POST("/refresh-token", m.Handler.Refresh)

	auth := users.Group("/")
	auth.Use(middleware.Auth(m.Redis, m.JWT))
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.GET("/current-user", m.Handler.CurrentUser)
		auth.GET("/search", m.Handler.Search)
	}
}
