package account

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/eddez/backend/internal/model/user"
	"github.com/zhouzirui/eddez/backend/internal/storage"
)

func setupRouter() *chi.Mux {
	handler := New(
		storage.NewMemoryStore(nil),
		Admin{Email: "owner@eddez.test", Password: "s3cret"},
		nil,
		WithHashCost(bcrypt.MinCost),
	)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func post(t *testing.T, r http.Handler, path string, body credentials) (*httptest.ResponseRecorder, authResponse) {
	t.Helper()
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var decoded authResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	return resp, decoded
}

func TestSignupAndLogin(t *testing.T) {
	r := setupRouter()

	resp, body := post(t, r, "/auth/signup", credentials{Email: "Ana@Example.com", Password: "pw", Name: "Ana"})
	if resp.Code != http.StatusOK || !body.Success {
		t.Fatalf("signup failed: %d %+v", resp.Code, body)
	}
	if body.User.Email != "ana@example.com" || body.User.Role != user.RoleUser {
		t.Fatalf("unexpected user: %+v", body.User)
	}

	resp, body = post(t, r, "/auth/login", credentials{Email: "ana@example.com", Password: "pw"})
	if resp.Code != http.StatusOK || body.User == nil || body.User.Name != "Ana" {
		t.Fatalf("login failed: %d %+v", resp.Code, body)
	}

	resp, body = post(t, r, "/auth/login", credentials{Email: "ana@example.com", Password: "wrong"})
	if resp.Code != http.StatusUnauthorized || body.Success {
		t.Fatalf("expected 401, got %d %+v", resp.Code, body)
	}
}

func TestSignupDuplicate(t *testing.T) {
	r := setupRouter()

	post(t, r, "/auth/signup", credentials{Email: "ana@example.com", Password: "pw"})
	resp, body := post(t, r, "/auth/signup", credentials{Email: "ana@example.com", Password: "other"})
	if resp.Code != http.StatusBadRequest || body.Error != "User already exists" {
		t.Fatalf("expected duplicate rejection, got %d %+v", resp.Code, body)
	}
}

func TestAdminLogin(t *testing.T) {
	r := setupRouter()

	resp, body := post(t, r, "/auth/login", credentials{Email: "owner@eddez.test", Password: "s3cret"})
	if resp.Code != http.StatusOK || body.User == nil || !body.User.IsAdmin() {
		t.Fatalf("expected admin login, got %d %+v", resp.Code, body)
	}

	resp, _ = post(t, r, "/auth/login", credentials{Email: "owner@eddez.test", Password: "nope"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong admin password, got %d", resp.Code)
	}
}

func TestListUsers(t *testing.T) {
	r := setupRouter()
	post(t, r, "/auth/signup", credentials{Email: "a@example.com", Password: "pw"})
	post(t, r, "/auth/signup", credentials{Email: "b@example.com", Password: "pw"})

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var users []user.User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(users) != 2 || users[0].Email != "a@example.com" || users[0].Name != "a" {
		t.Fatalf("unexpected users: %+v", users)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte(`"role":"user"`)) || bytes.Contains(resp.Body.Bytes(), []byte("PasswordHash")) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}
