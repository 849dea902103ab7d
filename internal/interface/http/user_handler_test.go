package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	userapp "github.com/adiprasetyo/playtube-backend/internal/application"
	"github.com/adiprasetyo/playtube-backend/internal/domain/entity"
	repo "github.com/adiprasetyo/playtube-backend/internal/domain/repository"
	handlers "github.com/adiprasetyo/playtube-backend/internal/interface/http"
	"github.com/adiprasetyo/playtube-backend/internal/router/modules"
	"github.com/adiprasetyo/playtube-backend/pkg/helpers"
	"github.com/adiprasetyo/playtube-backend/pkg/validation"
)

type fakeUserRepo struct {
	users  map[string]*entity.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*entity.User), nextID: 1}
}

func (f *fakeUserRepo) Create(_ context.Context, u *entity.User) error {
	for _, e := range f.users {
		if e.Username == u.Username || e.Email == u.Email {
			return repo.ErrDuplicate
		}
	}
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	copied := *u
	f.users[u.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByUsernameOrEmail(_ context.Context, username, email string) (*entity.User, error) {
	username = strings.ToLower(username)
	for _, u := range f.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeUserRepo) UpdateRefreshToken(_ context.Context, id, token string) error {
	u, ok := f.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.RefreshToken = token
	return nil
}

type fakeUploader struct{}

func (fakeUploader) UploadFile(_ context.Context, localPath string) (string, error) {
	return "https://storage.googleapis.com/playtube-test/" + localPath, nil
}

type envelope struct {
	StatusCode int            `json:"statusCode"`
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data"`
	Errors     any            `json:"errors"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeUserRepo) {
	t.Helper()
	fr := newFakeUserRepo()
	return newTestRouterFor(t, fr), fr
}

func newTestRouterFor(t *testing.T, userRepo repo.UserRepository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()

	jwt := helpers.NewJWTManager("test-access-secret", "test-refresh-secret", time.Minute, time.Hour)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := userapp.NewService(userRepo, jwt, fakeUploader{}, nil, logger, nil, "", nil, false)
	h := handlers.NewUserHandler(svc, logger, "localhost", false, t.TempDir())

	r := gin.New()
	modules.NewUserModule(h, jwt, nil).Register(r.Group("/api/v1"))
	return r
}

func registerForm(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, name := range files {
		fw, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func defaultFields() map[string]string {
	return map[string]string{
		"fullName": "Ada Lovelace",
		"email":    "ada@x.com",
		"username": "Ada",
		"password": "secret1",
	}
}

func doRegister(t *testing.T, r *gin.Engine, fields map[string]string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := registerForm(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func doLogin(t *testing.T, r *gin.Engine, payload map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRegister_Created(t *testing.T) {
	r, fr := newTestRouter(t)

	rec := doRegister(t, r, defaultFields(), map[string]string{"avatar": "me.png"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, http.StatusCreated, env.StatusCode)
	assert.Equal(t, "ada", env.Data["username"], "username is lowercased")
	assert.NotEmpty(t, env.Data["avatar"])
	assert.Equal(t, "", env.Data["coverImage"])
	assert.Len(t, fr.users, 1)
}

func TestRegister_ResponseNeverLeaksCredentialFields(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRegister(t, r, defaultFields(), map[string]string{"avatar": "me.png"})
	require.Equal(t, http.StatusCreated, rec.Code)

	env := decodeEnvelope(t, rec)
	_, hasPassword := env.Data["password"]
	_, hasRefresh := env.Data["refreshToken"]
	assert.False(t, hasPassword, "password must never appear in a response")
	assert.False(t, hasRefresh, "refresh token must never appear in a user view")
	assert.NotContains(t, rec.Body.String(), "secret1")
}

func TestRegister_MissingFieldIsBadRequest(t *testing.T) {
	for _, field := range []string{"fullName", "email", "username", "password"} {
		t.Run(field, func(t *testing.T) {
			r, fr := newTestRouter(t)
			fields := defaultFields()
			delete(fields, field)

			rec := doRegister(t, r, fields, map[string]string{"avatar": "me.png"})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.Empty(t, fr.users, "no record created on validation failure")
		})
	}
}

func TestRegister_BlankFieldIsBadRequest(t *testing.T) {
	r, fr := newTestRouter(t)
	fields := defaultFields()
	fields["fullName"] = "   "

	rec := doRegister(t, r, fields, map[string]string{"avatar": "me.png"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "All fields are required", env.Message)
	assert.Empty(t, fr.users)
}

func TestRegister_MissingAvatarUsesUniformEnvelope(t *testing.T) {
	r, fr := newTestRouter(t)

	rec := doRegister(t, r, defaultFields(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Avatar file is required", env.Message)
	assert.Equal(t, http.StatusBadRequest, env.StatusCode)
	assert.Empty(t, fr.users)
}

func TestRegister_DuplicateWithoutAvatarIsConflict(t *testing.T) {
	r, fr := newTestRouter(t)
	rec := doRegister(t, r, defaultFields(), map[string]string{"avatar": "me.png"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRegister(t, r, defaultFields(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Len(t, fr.users, 1)
}

func TestRegister_DuplicateIsConflict(t *testing.T) {
	r, fr := newTestRouter(t)
	rec := doRegister(t, r, defaultFields(), map[string]string{"avatar": "me.png"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// same username, different email
	fields := defaultFields()
	fields["email"] = "other@x.com"
	rec = doRegister(t, r, fields, map[string]string{"avatar": "me.png"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Len(t, fr.users, 1)
}

func registerAda(t *testing.T, r *gin.Engine) {
	t.Helper()
	rec := doRegister(t, r, defaultFields(), map[string]string{"avatar": "me.png"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func cookieByName(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin_SetsCookiesAndReturnsTokens(t *testing.T) {
	r, fr := newTestRouter(t)
	registerAda(t, r)

	rec := doLogin(t, r, map[string]string{"email": "ada@x.com", "username": "ada", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Data["accessToken"])
	assert.NotEmpty(t, env.Data["refreshToken"])
	assert.NotEqual(t, env.Data["accessToken"], env.Data["refreshToken"])

	user, ok := env.Data["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ada", user["username"])
	_, hasPassword := user["password"]
	assert.False(t, hasPassword)

	res := rec.Result()
	access := cookieByName(res, helpers.AccessTokenCookie)
	refresh := cookieByName(res, helpers.RefreshTokenCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, env.Data["accessToken"], access.Value)
	assert.Equal(t, env.Data["refreshToken"], refresh.Value)

	// refresh token persisted against the user record
	for _, u := range fr.users {
		assert.Equal(t, env.Data["refreshToken"], u.RefreshToken)
	}
}

func TestLogin_UsernameAloneSuffices(t *testing.T) {
	r, _ := newTestRouter(t)
	registerAda(t, r)

	rec := doLogin(t, r, map[string]string{"username": "ada", "password": "secret1"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLogin_EmailAloneSuffices(t *testing.T) {
	r, _ := newTestRouter(t)
	registerAda(t, r)

	rec := doLogin(t, r, map[string]string{"email": "ada@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLogin_NoIdentifierIsBadRequest(t *testing.T) {
	r, _ := newTestRouter(t)
	registerAda(t, r)

	rec := doLogin(t, r, map[string]string{"password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_UnknownUserIsNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doLogin(t, r, map[string]string{"username": "nobody", "password": "secret1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// downUserRepo fails every call, standing in for an unreachable database.
type downUserRepo struct{}

var errRepoDown = errors.New("connection refused")

func (downUserRepo) Create(context.Context, *entity.User) error { return errRepoDown }
func (downUserRepo) GetByID(context.Context, string) (*entity.User, error) {
	return nil, errRepoDown
}
func (downUserRepo) GetByUsernameOrEmail(context.Context, string, string) (*entity.User, error) {
	return nil, errRepoDown
}
func (downUserRepo) UpdateRefreshToken(context.Context, string, string) error { return errRepoDown }

func TestLogin_RepositoryOutageIsInternalError(t *testing.T) {
	r := newTestRouterFor(t, downUserRepo{})

	rec := doLogin(t, r, map[string]string{"username": "ada", "password": "secret1"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.NotContains(t, rec.Body.String(), "connection refused", "internals stay out of the response")
}

func TestLogin_WrongPasswordIsUnauthorizedWithoutCookies(t *testing.T) {
	r, fr := newTestRouter(t)
	registerAda(t, r)

	rec := doLogin(t, r, map[string]string{"email": "ada@x.com", "username": "ada", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "no cookies on failed login")
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	for _, u := range fr.users {
		assert.Empty(t, u.RefreshToken)
	}
}

func TestLogout_ClearsSessionAndCookies(t *testing.T) {
	r, fr := newTestRouter(t)
	registerAda(t, r)

	login := doLogin(t, r, map[string]string{"username": "ada", "password": "secret1"})
	require.Equal(t, http.StatusOK, login.Code)
	env := decodeEnvelope(t, login)
	access := env.Data["accessToken"].(string)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.AddCookie(&http.Cookie{Name: helpers.AccessTokenCookie, Value: access})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeEnvelope(t, rec)
	assert.True(t, out.Success)

	res := rec.Result()
	for _, name := range []string{helpers.AccessTokenCookie, helpers.RefreshTokenCookie} {
		c := cookieByName(res, name)
		require.NotNil(t, c, "cookie %s must be cleared", name)
		assert.Empty(t, c.Value)
		assert.Less(t, c.MaxAge, 0)
	}

	for _, u := range fr.users {
		assert.Empty(t, u.RefreshToken, "logout clears the persisted refresh token")
	}
}

func TestLogout_RequiresAuthentication(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh_RotatesTokens(t *testing.T) {
	r, _ := newTestRouter(t)
	registerAda(t, r)

	login := doLogin(t, r, map[string]string{"username": "ada", "password": "secret1"})
	env := decodeEnvelope(t, login)
	refresh := env.Data["refreshToken"].(string)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: helpers.RefreshTokenCookie, Value: refresh})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeEnvelope(t, rec)
	assert.NotEqual(t, refresh, out.Data["refreshToken"])
	assert.NotEmpty(t, out.Data["accessToken"])
}

func TestRefresh_MissingTokenIsUnauthorized(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCurrentUser_ReturnsSanitizedView(t *testing.T) {
	r, _ := newTestRouter(t)
	registerAda(t, r)

	login := doLogin(t, r, map[string]string{"username": "ada", "password": "secret1"})
	env := decodeEnvelope(t, login)
	access := env.Data["accessToken"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeEnvelope(t, rec)
	assert.Equal(t, "ada", out.Data["username"])
	assert.NotContains(t, rec.Body.String(), "password")
}
