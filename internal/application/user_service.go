package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/adiprasetyo/playtube-backend/internal/domain/entity"
	repo "github.com/adiprasetyo/playtube-backend/internal/domain/repository"
	"github.com/adiprasetyo/playtube-backend/pkg/helpers"
	"github.com/adiprasetyo/playtube-backend/pkg/mailer"
)

var (
	ErrFieldsRequired      = errors.New("all fields are required")
	ErrIdentifierRequired  = errors.New("username or email is required")
	ErrUserExists          = errors.New("user with email or username already exists")
	ErrUserNotFound        = errors.New("user does not exist")
	ErrInvalidCredentials  = errors.New("invalid user credentials")
	ErrAvatarRequired      = errors.New("avatar file is required")
	ErrAvatarUpload        = errors.New("failed to upload avatar file")
	ErrTokenIssuance       = errors.New("something went wrong while generating refresh and access token")
	ErrRegistration        = errors.New("something went wrong while registering the user")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

// MediaUploader pushes a locally staged file to the media host and returns
// its public URL. An error is the only failure signal; callers decide whether
// the upload is fatal.
type MediaUploader interface {
	UploadFile(ctx context.Context, localPath string) (string, error)
}

type Service struct {
	Repo         repo.UserRepository
	JWT          *helpers.JWTManager
	Uploader     MediaUploader
	Redis        *redis.Client
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
	Pub          *helpers.RabbitPublisher
	MailEnabled  bool
}

func NewService(repo repo.UserRepository, jwt *helpers.JWTManager, uploader MediaUploader, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esUsersIndex string, pub *helpers.RabbitPublisher, mailEnabled bool) *Service {
	return &Service{
		Repo:         repo,
		JWT:          jwt,
		Uploader:     uploader,
		Redis:        rdb,
		Logger:       logger,
		ES:           es,
		ESUsersIndex: esUsersIndex,
		Pub:          pub,
		MailEnabled:  mailEnabled,
	}
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type RegisterInput struct {
	FullName string
	Email    string
	Username string
	Password string
	// AvatarPath and CoverImagePath are local staging paths written by the
	// HTTP layer; empty means the file part was absent.
	AvatarPath     string
	CoverImagePath string
}

type LoginInput struct {
	Email    string
	Username string
	Password string
}

func sessionKey(userID string) string {
	return "user:session:" + userID
}

// Register creates a new user: validates fields, checks uniqueness, uploads
// the avatar (required) and cover image (best-effort), hashes the password
// and persists the record. The returned user is re-read from the directory
// as a consistency guard.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	for _, f := range []string{in.FullName, in.Email, in.Username, in.Password} {
		if strings.TrimSpace(f) == "" {
			return nil, ErrFieldsRequired
		}
	}

	existing, err := s.Repo.GetByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	// Uniqueness is checked before the avatar so a duplicate registration
	// reports the conflict even when the file part is absent.
	if in.AvatarPath == "" {
		return nil, ErrAvatarRequired
	}

	avatarURL, err := s.Uploader.UploadFile(ctx, in.AvatarPath)
	if err != nil || avatarURL == "" {
		s.Logger.WithError(err).Warn("avatar upload failed")
		return nil, ErrAvatarUpload
	}

	// Cover image is optional and its upload is never fatal.
	coverURL := ""
	if in.CoverImagePath != "" {
		if url, cErr := s.Uploader.UploadFile(ctx, in.CoverImagePath); cErr == nil {
			coverURL = url
		} else {
			s.Logger.WithError(cErr).Warn("cover image upload failed")
		}
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &entity.User{
		Username:      strings.ToLower(in.Username),
		Email:         in.Email,
		FullName:      in.FullName,
		Password:      hash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Lost the race against a concurrent registration; the unique
			// index is the backstop for the non-atomic check-then-create.
			return nil, ErrUserExists
		}
		return nil, err
	}

	created, err := s.Repo.GetByID(ctx, u.ID)
	if err != nil || created == nil {
		return nil, ErrRegistration
	}

	s.indexUser(ctx, created)
	s.enqueueWelcomeEmail(ctx, created)

	return created, nil
}

// Login authenticates by username or email plus password and issues a token
// pair. The refresh token is persisted onto the user record; at most one
// refresh token is valid per user.
func (s *Service) Login(ctx context.Context, in LoginInput) (*entity.User, TokenPair, error) {
	if in.Username == "" && in.Email == "" {
		return nil, TokenPair{}, ErrIdentifierRequired
	}

	u, err := s.Repo.GetByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, TokenPair{}, ErrUserNotFound
		}
		return nil, TokenPair{}, err
	}
	if u == nil {
		return nil, TokenPair{}, ErrUserNotFound
	}
	if !helpers.CompareHashAndPassword(u.Password, in.Password) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}

	loggedIn, err := s.Repo.GetByID(ctx, u.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, TokenPair{}, ErrUserNotFound
		}
		return nil, TokenPair{}, err
	}
	if loggedIn == nil {
		return nil, TokenPair{}, ErrUserNotFound
	}
	return loggedIn, pair, nil
}

// Logout clears the persisted refresh token and drops the cached session.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.Repo.UpdateRefreshToken(ctx, userID, ""); err != nil {
		return err
	}
	if s.Redis != nil {
		if err := s.Redis.Del(ctx, sessionKey(userID)).Err(); err != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Warn("session delete failed")
		}
	}
	return nil
}

// Refresh rotates the token pair. The incoming token must both verify and
// match the persisted refresh token, so a logout or a newer login invalidates it.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*entity.User, TokenPair, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, TokenPair{}, ErrInvalidRefreshToken
	}
	u, err := s.Repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, TokenPair{}, ErrInvalidRefreshToken
		}
		return nil, TokenPair{}, err
	}
	if u == nil {
		return nil, TokenPair{}, ErrInvalidRefreshToken
	}
	if u.RefreshToken == "" || u.RefreshToken != refreshToken {
		return nil, TokenPair{}, ErrInvalidRefreshToken
	}
	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// CurrentUser returns the user for an authenticated id.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// issueTokens generates the access/refresh pair for the resolved user,
// persists the refresh token and caches a session in Redis when configured.
func (s *Service) issueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, u.Username, u.Email)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		return TokenPair{}, ErrTokenIssuance
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		return TokenPair{}, ErrTokenIssuance
	}
	if err := s.Repo.UpdateRefreshToken(ctx, u.ID, refresh); err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Error("persist refresh token failed")
		return TokenPair{}, ErrTokenIssuance
	}

	if s.Redis != nil {
		key := sessionKey(u.ID)
		fields := map[string]any{
			"user_id":    u.ID,
			"username":   u.Username,
			"email":      u.Email,
			"avatar_url": u.AvatarURL,
			"logged_in":  true,
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		}
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, 24*time.Hour)
		if _, rErr := pipe.Exec(ctx); rErr != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return
	}
	doc := map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"full_name":  u.FullName,
		"avatar_url": u.AvatarURL,
		"created_at": u.CreatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
}

func (s *Service) enqueueWelcomeEmail(ctx context.Context, u *entity.User) {
	if s.Pub == nil || !s.MailEnabled {
		return
	}
	job := mailer.EmailJob{
		To:       u.Email,
		Template: "welcome",
		Data:     map[string]any{"FullName": u.FullName, "Username": u.Username},
	}
	if err := s.Pub.PublishJSON(ctx, job); err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("enqueue welcome email failed")
	}
}

// SearchUsers performs a simple multi_match search on username, full name and email.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"username^2", "full_name", "email"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
