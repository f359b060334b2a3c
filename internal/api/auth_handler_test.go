package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/service"
	"github.com/saldanaj97/atlaris-sub007/internal/service/auth"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

// fakeRegistrar implements UserRegistrar with canned responses.
type fakeRegistrar struct {
	user    *domain.User
	regErr  error
	authErr error
}

func (f *fakeRegistrar) Register(_ context.Context, email, _ string) (*domain.User, error) {
	if f.regErr != nil {
		return nil, f.regErr
	}
	u := *f.user
	u.Email = email
	return &u, nil
}

func (f *fakeRegistrar) Authenticate(_ context.Context, _, _ string) (*domain.User, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.user, nil
}

// fakeJWTService returns a fixed token.
type fakeJWTService struct {
	token string
	err   error
}

func (f *fakeJWTService) GenerateToken(_ context.Context, _ uuid.UUID) (string, error) {
	return f.token, f.err
}

func (f *fakeJWTService) ValidateToken(_ context.Context, _ string) (*auth.Claims, error) {
	return nil, auth.ErrInvalidToken
}

func testUser() *domain.User {
	return &domain.User{
		ID:        uuid.New(),
		Email:     "test@example.com",
		Tier:      domain.TierFree,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func postJSON(t *testing.T, path string, payload map[string]interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRegister(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		payload    map[string]interface{}
		regErr     error
		wantStatus int
		wantToken  bool
	}{
		{
			name: "valid registration",
			payload: map[string]interface{}{
				"email":    "new@example.com",
				"password": "password1234567",
			},
			wantStatus: http.StatusCreated,
			wantToken:  true,
		},
		{
			name: "invalid email",
			payload: map[string]interface{}{
				"email":    "not-an-email",
				"password": "password1234567",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "password too short",
			payload: map[string]interface{}{
				"email":    "new@example.com",
				"password": "short",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "missing password",
			payload: map[string]interface{}{
				"email": "new@example.com",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "duplicate email",
			payload: map[string]interface{}{
				"email":    "taken@example.com",
				"password": "password1234567",
			},
			regErr:     store.ErrEmailExists,
			wantStatus: http.StatusConflict,
		},
		{
			name: "store failure",
			payload: map[string]interface{}{
				"email":    "new@example.com",
				"password": "password1234567",
			},
			regErr:     errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			registrar := &fakeRegistrar{user: testUser(), regErr: tt.regErr}
			handler := NewAuthHandler(registrar, &fakeJWTService{token: "test-token"})

			recorder := httptest.NewRecorder()
			handler.Register(recorder, postJSON(t, "/api/auth/register", tt.payload))

			assert.Equal(t, tt.wantStatus, recorder.Code)

			if tt.wantToken {
				var resp AuthResponse
				require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
				assert.NotEqual(t, uuid.Nil, resp.UserID)
				assert.Equal(t, "test-token", resp.Token)
			}
		})
	}
}

func TestRegisterTokenFailure(t *testing.T) {
	t.Parallel()

	registrar := &fakeRegistrar{user: testUser()}
	handler := NewAuthHandler(registrar, &fakeJWTService{err: errors.New("signing failed")})

	recorder := httptest.NewRecorder()
	handler.Register(recorder, postJSON(t, "/api/auth/register", map[string]interface{}{
		"email":    "new@example.com",
		"password": "password1234567",
	}))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), "signing failed")
}

func TestLogin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		payload    map[string]interface{}
		authErr    error
		wantStatus int
		wantToken  bool
	}{
		{
			name: "valid login",
			payload: map[string]interface{}{
				"email":    "test@example.com",
				"password": "password1234567",
			},
			wantStatus: http.StatusOK,
			wantToken:  true,
		},
		{
			name: "wrong password",
			payload: map[string]interface{}{
				"email":    "test@example.com",
				"password": "wrong-password",
			},
			authErr:    service.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "unknown email",
			payload: map[string]interface{}{
				"email":    "missing@example.com",
				"password": "password1234567",
			},
			authErr:    service.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "missing email",
			payload: map[string]interface{}{
				"password": "password1234567",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "store failure",
			payload: map[string]interface{}{
				"email":    "test@example.com",
				"password": "password1234567",
			},
			authErr:    errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			user := testUser()
			registrar := &fakeRegistrar{user: user, authErr: tt.authErr}
			handler := NewAuthHandler(registrar, &fakeJWTService{token: "test-token"})

			recorder := httptest.NewRecorder()
			handler.Login(recorder, postJSON(t, "/api/auth/login", tt.payload))

			assert.Equal(t, tt.wantStatus, recorder.Code)

			if tt.wantToken {
				var resp AuthResponse
				require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
				assert.Equal(t, user.ID, resp.UserID)
				assert.Equal(t, "test-token", resp.Token)
			}
		})
	}
}
