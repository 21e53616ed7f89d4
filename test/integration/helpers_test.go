package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/telemetrix/esp32-backend/internal/domain"
	"github.com/telemetrix/esp32-backend/internal/http/handler"
	"github.com/telemetrix/esp32-backend/internal/http/router"
	"github.com/telemetrix/esp32-backend/internal/repository"
	"github.com/telemetrix/esp32-backend/internal/security"
	"github.com/telemetrix/esp32-backend/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type authPayload struct {
	User struct {
		ID    uint   `json:"id"`
		Name  string `json:"nombre"`
		Email string `json:"correo"`
		Role  string `json:"rol"`
	} `json:"usuario"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type testBackend struct {
	URL    string
	Client *http.Client
	DB     *gorm.DB
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.User{}, &domain.Session{}, &domain.LoginLog{},
		&domain.Reading{}, &domain.Setting{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	tokens := security.NewTokenManager("esp32-backend-test", "0123456789abcdef0123456789abcdef")
	hasher := security.NewPasswordHasher(4)
	auth := service.NewAuthService(users, sessions, repository.NewLoginLogRepository(db), tokens, hasher, time.Hour, 7*24*time.Hour)
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	readings := service.NewReadingService(repository.NewReadingRepository(db), repository.NewSettingRepository(db), discard)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:   handler.NewAuthHandler(auth),
		UserHandler:   handler.NewUserHandler(service.NewUserService(users, sessions, hasher)),
		SensorHandler: handler.NewSensorHandler(readings),
		AuthService:   auth,
	})

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testBackend{URL: srv.URL, Client: srv.Client(), DB: db}
}

func (b *testBackend) doJSON(t *testing.T, method, path, token string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, b.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s response: %v", method, path, err)
	}
	return resp, env
}

func (b *testBackend) register(t *testing.T, name, email, password string) {
	t.Helper()
	resp, env := b.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"nombre":     name,
		"correo":     email,
		"contraseña": password,
	})
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register %s: status=%d success=%v", email, resp.StatusCode, env.Success)
	}
}

func (b *testBackend) login(t *testing.T, email, password string) authPayload {
	t.Helper()
	resp, env := b.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"correo":     email,
		"contraseña": password,
	})
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("login %s: status=%d success=%v", email, resp.StatusCode, env.Success)
	}
	var payload authPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode login payload: %v", err)
	}
	if payload.Token == "" || payload.RefreshToken == "" {
		t.Fatalf("login payload missing tokens: %+v", payload)
	}
	return payload
}

func (b *testBackend) promoteToAdmin(t *testing.T, email string) {
	t.Helper()
	res := b.DB.Model(&domain.User{}).Where("correo = ?", email).Update("rol", domain.RoleAdmin)
	if res.Error != nil || res.RowsAffected != 1 {
		t.Fatalf("promote %s: err=%v rows=%d", email, res.Error, res.RowsAffected)
	}
}
