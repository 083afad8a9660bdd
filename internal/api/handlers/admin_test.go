package handlers_test

import (
	"net/http"
	"testing"

	"github.com/dom/medtrack/internal/domain"
	"github.com/dom/medtrack/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func TestAdminHandler_RequiresAdmin(t *testing.T) {
	ts := testutil.NewTestServer(t)
	user, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{name: "list", method: http.MethodGet, path: "/admin/users"},
		{name: "create", method: http.MethodPost, path: "/admin/users", body: map[string]string{"email": "x@example.com", "password": "secret123"}},
		{name: "set role", method: http.MethodPut, path: "/admin/users/" + user.ID.String() + "/role", body: map[string]string{"role": "admin"}},
		{name: "delete", method: http.MethodDelete, path: "/admin/users/" + user.ID.String()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.Do(t, testutil.CreateAuthenticatedRequest(t, tt.method, ts.APIURL(tt.path), tt.body, token))
			testutil.AssertErrorResponse(t, resp, http.StatusForbidden, "forbidden")
		})
	}

	stored, err := ts.Repos.User.GetByID(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, stored.Role)
}

func TestAdminHandler_CreateUser(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, adminToken := testutil.NewUserBuilder().AsAdmin().BuildAndAuthenticate(t, ts)

	tests := []struct {
		name           string
		request        map[string]string
		expectedStatus int
		expectedCode   string
		expectedRole   string
	}{
		{
			name:           "default role",
			request:        map[string]string{"email": "new@example.com", "password": "secret123"},
			expectedStatus: http.StatusCreated,
			expectedRole:   "user",
		},
		{
			name:           "explicit admin",
			request:        map[string]string{"email": "boss@example.com", "password": "secret123", "role": "admin"},
			expectedStatus: http.StatusCreated,
			expectedRole:   "admin",
		},
		{
			name:           "duplicate email",
			request:        map[string]string{"email": "NEW@example.com", "password": "secret123"},
			expectedStatus: http.StatusConflict,
			expectedCode:   "email_exists",
		},
		{
			name:           "unknown role",
			request:        map[string]string{"email": "odd@example.com", "password": "secret123", "role": "superuser"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "invalid_request",
		},
		{
			name:           "short password",
			request:        map[string]string{"email": "short@example.com", "password": "abc"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodPost, ts.APIURL("/admin/users"), tt.request, adminToken))
			if tt.expectedCode != "" {
				testutil.AssertErrorResponse(t, resp, tt.expectedStatus, tt.expectedCode)
				return
			}

			testutil.AssertStatusCode(t, resp, tt.expectedStatus)
			var created userResponse
			testutil.AssertJSONResponse(t, resp, &created)
			assert.Equal(t, tt.expectedRole, created.Role)
			assert.Equal(t, tt.request["email"], created.Email)
		})
	}

	// The created account can log in
	login := testutil.Login(t, ts, "new@example.com", "secret123")
	assert.NotEmpty(t, login.AccessToken)
}

func TestAdminHandler_SetRoleAndDelete(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, adminToken := testutil.NewUserBuilder().AsAdmin().BuildAndAuthenticate(t, ts)
	target, targetToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	rolePath := ts.APIURL("/admin/users/" + target.ID.String() + "/role")

	resp := testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodPut, rolePath, map[string]string{"role": "owner"}, adminToken))
	testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "invalid_request")

	resp = testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodPut, rolePath, map[string]string{"role": "admin"}, adminToken))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var promoted userResponse
	testutil.AssertJSONResponse(t, resp, &promoted)
	assert.Equal(t, "admin", promoted.Role)

	// The promotion is visible on the target's existing token
	resp = testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodGet, ts.APIURL("/admin/users"), nil, targetToken))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var users []userResponse
	testutil.AssertJSONResponse(t, resp, &users)
	assert.Len(t, users, 2)

	resp = testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodDelete, ts.APIURL("/admin/users/"+target.ID.String()), nil, adminToken))
	testutil.AssertStatusCode(t, resp, http.StatusNoContent)

	resp = testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodGet, ts.APIURL("/medications"), nil, targetToken))
	testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "unauthorized")

	resp = testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodDelete, ts.APIURL("/admin/users/"+target.ID.String()), nil, adminToken))
	testutil.AssertErrorResponse(t, resp, http.StatusNotFound, "not_found")

	resp = testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodPut, ts.APIURL("/admin/users/not-a-uuid/role"), map[string]string{"role": "user"}, adminToken))
	testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "invalid_request")
}
