package router

import (
	userapp "github.com/adiprasetyo/playtube-backend/internal/application"
	"github.com/adiprasetyo/playtube-backend/internal/container"
	"github.com/adiprasetyo/playtube-backend/internal/infrastructure/media"
	pginfra "github.com/adiprasetyo/playtube-backend/internal/infrastructure/postgres"
	handlers "github.com/adiprasetyo/playtube-backend/internal/interface/http"
	"github.com/adiprasetyo/playtube-backend/internal/router/modules"
)

// InitModules initializes all application modules and registers them with the
// router registry. Called once during startup after the container is populated.
func InitModules(r *Registry) {
	cfg := container.GetConfig()

	repo := pginfra.NewUserRepository(container.GetPGPool())
	uploader := media.NewGCSUploader(container.GetGCS(), cfg.GCSBucket, "media")

	service := userapp.NewService(
		repo,
		container.GetJWT(),
		uploader,
		container.GetRedis(),
		container.GetLogger(),
		container.GetES(),
		cfg.ESUsersIndex,
		container.GetRabbitPub(),
		cfg.MailSendEnabled,
	)

	handler := handlers.NewUserHandler(
		service,
		container.GetLogger(),
		cfg.CookieDomain,
		cfg.CookieSecure,
		cfg.UploadTempDir,
	)

	r.Add(modules.NewUserModule(handler, container.GetJWT(), container.GetRedis()))
}
