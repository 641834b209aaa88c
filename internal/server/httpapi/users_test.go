package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockAuth struct{ mock.Mock }

func (m *MockAuth) Register(ctx context.Context, in services.RegisterInput) (*services.Session, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Session), args.Error(1)
}

func (m *MockAuth) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LoginResult), args.Error(1)
}

func (m *MockAuth) ConsumeReset(ctx context.Context, userID, newPassword string) (*services.Session, error) {
	args := m.Called(ctx, userID, newPassword)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Session), args.Error(1)
}

func (m *MockAuth) Authenticate(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockProfiles struct{ mock.Mock }

func (m *MockProfiles) GetSelf(ctx context.Context, current *models.User) *models.User {
	return m.Called(ctx, current).Get(0).(*models.User)
}

func (m *MockProfiles) UpdateSelf(ctx context.Context, current *models.User, in services.UpdateInput) (*models.User, error) {
	args := m.Called(ctx, current, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

// --- helpers ---

func setupRouter(a *MockAuth, p *MockProfiles, db Pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if db == nil {
		db = stubPinger{}
	}
	return NewRouter(Deps{
		Auth:               a,
		Profiles:           p,
		DB:                 db,
		Logger:             logging.Nop{},
		CORSAllowedOrigins: []string{"https://shop.example.com"},
	})
}

func do(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func svcErr(kind services.Kind, msg string) error {
	return &services.Error{Kind: kind, Message: msg}
}

var alice = &models.User{ID: "7f1d3c2e-0000-4000-8000-000000000001", FirstName: "Alice", LastName: "Liddell", Email: "alice@example.com", PasswordHash: "$2a$10$secret"}

// --- register ---

func TestRegister_Success(t *testing.T) {
	a := &MockAuth{}
	a.On("Register", mock.Anything, mock.MatchedBy(func(in services.RegisterInput) bool {
		return in.Email == "alice@example.com" && in.ShippingAddress != nil && in.ShippingAddress.Zip == "12345"
	})).Return(&services.Session{Token: "tok", User: alice}, nil)

	r := setupRouter(a, &MockProfiles{}, nil)
	w := do(t, r, http.MethodPost, "/users/register", map[string]any{
		"firstName": "Alice", "lastName": "Liddell", "password": "wonderland",
		"email": "alice@example.com", "phone": "1",
		"shippingAddress": map[string]string{"street": "1 Rabbit Hole", "zip": "12345"},
	}, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.Equal(t, "you're signed up!", body["message"])
	assert.Equal(t, "tok", body["token"])
	assert.NotContains(t, body, "adminToken")

	user := body["user"].(map[string]any)
	assert.Equal(t, alice.ID, user["id"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, w.Body.String(), "$2a$")
	a.AssertExpectations(t)
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		kind       services.Kind
		wantStatus int
	}{
		{services.KindEmailInUse, http.StatusForbidden},
		{services.KindPasswordTooShort, http.StatusBadRequest},
		{services.KindPasswordTooLong, http.StatusBadRequest},
		{services.KindPasswordTooWeak, http.StatusBadRequest},
		{services.KindValidation, http.StatusBadRequest},
		{services.KindInfrastructure, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			a := &MockAuth{}
			a.On("Register", mock.Anything, mock.Anything).Return(nil, svcErr(tt.kind, "detail"))

			w := do(t, setupRouter(a, &MockProfiles{}, nil), http.MethodPost, "/users/register",
				map[string]string{"email": "x@example.com"}, nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode[ErrorResponse](t, w)
			assert.Equal(t, string(tt.kind), body.Name)
			assert.Equal(t, strconv.Itoa(tt.wantStatus), body.Error)
		})
	}
}

func TestRegister_MalformedJSON(t *testing.T) {
	a := &MockAuth{}
	w := do(t, setupRouter(a, &MockProfiles{}, nil), http.MethodPost, "/users/register", `{"email":`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidRequestError", decode[ErrorResponse](t, w).Name)
	a.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestInfrastructureMessageIsGeneric(t *testing.T) {
	a := &MockAuth{}
	a.On("Login", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New(`pq: relation "users" does not exist`))

	w := do(t, setupRouter(a, &MockProfiles{}, nil), http.MethodPost, "/users/login",
		loginRequest{Email: "a@example.com", Password: "p"}, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[ErrorResponse](t, w)
	assert.Equal(t, "InfrastructureError", body.Name)
	assert.Equal(t, "internal server error", body.Message)
}

// --- login ---

func TestLogin_Outcomes(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		a := &MockAuth{}
		a.On("Login", mock.Anything, "alice@example.com", "wonderland").Return(&services.LoginResult{
			Outcome: services.LoginSucceeded, UserID: alice.ID,
			Session: &services.Session{Token: "tok", User: alice},
		}, nil)

		w := do(t, setupRouter(a, &MockProfiles{}, nil), http.MethodPost, "/users/login",
			loginRequest{Email: "alice@example.com", Password: "wonderland"}, nil)

		require.Equal(t, http.StatusOK, w.Code)
		body := decode[map[string]any](t, w)
		assert.Equal(t, "you're logged in!", body["message"])
		assert.Equal(t, "tok", body["token"])
		assert.NotContains(t, body, "adminToken")
		assert.NotNil(t, body["user"])
	})

	t.Run("admin", func(t *testing.T) {
		a := &MockAuth{}
		a.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(&services.LoginResult{
			Outcome: services.LoginSucceeded, UserID: alice.ID,
			Session: &services.Session{Token: "tok", AdminToken: "admin-tok", User: alice},
		}, nil)

		w := do(t, setupRouter(a, &MockProfiles{}, nil), http.MethodPost, "/users/login",
			loginRequest{Email: "a", Password: "b"}, nil)

		body := decode[map[string]any](t, w)
		assert.Equal(t, "admin-tok", body["adminToken"])
	})

	t.Run("needs reset", func(t *testing.T) {
		a := &MockAuth{}
		a.On("Login", mock.Anything, mock.Anything, mock.Anything).
			Return(&services.LoginResult{Outcome: services.LoginNeedsReset, UserID: alice.ID}, nil)

		w := do(t, setupRouter(a, &MockProfiles{}, nil), http.MethodPost, "/users/login",
			loginRequest{Email: "a", Password: "b"}, nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Please reset your password","userId":"`+alice.ID+`","needsReset":true}`, w.Body.String())
	})

	t.Run("inactive", func(t *testing.T) {
		a := &MockAuth{}
		a.On("Login", mock.Anything, mock.Anything, mock.Anything).
			Return(&services.LoginResult{Outcome: services.LoginInactive, UserID: alice.ID}, nil)

		w := do(t, setupRouter(a, &MockProfiles{}, nil), http.MethodPost, "/users/login",
			loginRequest{Email: "a", Password: "b"}, nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Your account has been deactivated","userId":"`+alice.ID+`","status":"inactive"}`, w.Body.String())
	})

	t.Run("incorrect credentials", func(t *testing.T) {
		a := &MockAuth{}
		a.On("Login", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, svcErr(services.KindIncorrectCredentials, "Incorrect email or password"))

		w := do(t, setupRouter(a, &MockProfiles{}, nil), http.MethodPost, "/users/login",
			loginRequest{Email: "a", Password: "b"}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"400","name":"IncorrectCredentialsError","message":"Incorrect email or password"}`, w.Body.String())
	})
}

// --- password reset ---

func TestConsumeReset(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		a := &MockAuth{}
		a.On("ConsumeReset", mock.Anything, alice.ID, "new-password").
			Return(&services.Session{Token: "tok", User: alice}, nil)

		w := do(t, setupRouter(a, &MockProfiles{}, nil), http.MethodDelete, "/users/password_reset/"+alice.ID,
			resetRequest{Password: "new-password"}, nil)

		require.Equal(t, http.StatusOK, w.Code)
		body := decode[map[string]any](t, w)
		assert.Equal(t, "you're logged in!", body["message"])
		a.AssertExpectations(t)
	})

	for _, tt := range []struct {
		kind services.Kind
		want int
	}{
		{services.KindSamePassword, http.StatusBadRequest},
		{services.KindNoPendingReset, http.StatusBadRequest},
		{services.KindPasswordTooShort, http.StatusBadRequest},
		{services.KindPasswordTooLong, http.StatusBadRequest},
		{services.KindUserNotFound, http.StatusNotFound},
	} {
		t.Run(string(tt.kind), func(t *testing.T) {
			a := &MockAuth{}
			a.On("ConsumeReset", mock.Anything, mock.Anything, mock.Anything).Return(nil, svcErr(tt.kind, "x"))

			w := do(t, setupRouter(a, &MockProfiles{}, nil), http.MethodDelete, "/users/password_reset/abc",
				resetRequest{Password: "p"}, nil)

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, string(tt.kind), decode[ErrorResponse](t, w).Name)
		})
	}
}

// --- /users/me ---

func TestMe_RequiresAuthentication(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			a := &MockAuth{}
			a.On("Authenticate", mock.Anything, "").
				Return(nil, svcErr(services.KindUnauthorized, "You must be logged in to perform this action"))
			p := &MockProfiles{}

			w := do(t, setupRouter(a, p, nil), method, "/users/me", `{}`, nil)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "UnauthorizedError", decode[ErrorResponse](t, w).Name)
			p.AssertNotCalled(t, "GetSelf", mock.Anything, mock.Anything)
			p.AssertNotCalled(t, "UpdateSelf", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestMe_NonBearerSchemeIsIgnored(t *testing.T) {
	a := &MockAuth{}
	a.On("Authenticate", mock.Anything, "").Return(nil, svcErr(services.KindUnauthorized, "x"))

	w := do(t, setupRouter(a, &MockProfiles{}, nil), http.MethodGet, "/users/me", nil,
		map[string]string{common.AuthorizationHeaderName: "Basic dXNlcjpwYXNz"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	a.AssertExpectations(t)
}

func TestGetMe(t *testing.T) {
	a := &MockAuth{}
	a.On("Authenticate", mock.Anything, "good-token").Return(alice, nil)
	p := &MockProfiles{}
	p.On("GetSelf", mock.Anything, alice).Return(alice)

	w := do(t, setupRouter(a, p, nil), http.MethodGet, "/users/me", nil,
		map[string]string{common.AuthorizationHeaderName: "Bearer good-token"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, alice.Email, body["email"])
	assert.NotContains(t, w.Body.String(), "$2a$")
	p.AssertExpectations(t)
}

func TestPatchMe(t *testing.T) {
	auth := func() *MockAuth {
		a := &MockAuth{}
		a.On("Authenticate", mock.Anything, "good-token").Return(alice, nil)
		return a
	}
	hdr := map[string]string{common.AuthorizationHeaderName: "bearer good-token"}

	t.Run("success", func(t *testing.T) {
		updated := *alice
		updated.FirstName = "Alicia"
		p := &MockProfiles{}
		p.On("UpdateSelf", mock.Anything, alice, mock.MatchedBy(func(in services.UpdateInput) bool {
			return in.FirstName != nil && *in.FirstName == "Alicia" && in.Email == nil && in.BillingAddress != nil
		})).Return(&updated, nil)

		w := do(t, setupRouter(auth(), p, nil), http.MethodPatch, "/users/me",
			`{"firstName":"Alicia","id":"ignored","billingAddress":{"city":"Oxford"}}`, hdr)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "Alicia", decode[map[string]any](t, w)["firstName"])
		p.AssertExpectations(t)
	})

	for _, tt := range []struct {
		kind services.Kind
		want int
	}{
		{services.KindEmailInUse, http.StatusBadRequest},
		{services.KindUserNotFound, http.StatusNotFound},
		{services.KindUserUpdate, http.StatusBadRequest},
		{services.KindPasswordTooShort, http.StatusBadRequest},
		{services.KindPasswordTooLong, http.StatusBadRequest},
	} {
		t.Run(string(tt.kind), func(t *testing.T) {
			p := &MockProfiles{}
			p.On("UpdateSelf", mock.Anything, mock.Anything, mock.Anything).Return(nil, svcErr(tt.kind, "x"))

			w := do(t, setupRouter(auth(), p, nil), http.MethodPatch, "/users/me", `{"email":"b@example.com"}`, hdr)

			assert.Equal(t, tt.want, w.Code)
			body := decode[ErrorResponse](t, w)
			assert.Equal(t, string(tt.kind), body.Name)
			assert.Equal(t, strconv.Itoa(tt.want), body.Error)
		})
	}
}
