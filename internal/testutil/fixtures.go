package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dom/medtrack/internal/domain"
	"github.com/dom/medtrack/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	email    string
	password string
	role     domain.Role
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		email:    fmt.Sprintf("user_%s@example.com", uuid.New().String()[:8]),
		password: "testpassword123",
		role:     domain.RoleUser,
	}
}

// WithEmail sets the email
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// AsAdmin gives the user the admin role
func (b *UserBuilder) AsAdmin() *UserBuilder {
	b.role = domain.RoleAdmin
	return b
}

// Build stores the user and returns it with the raw password
func (b *UserBuilder) Build(t *testing.T, users repository.UserRepository) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        b.email,
		PasswordHash: string(hashedPassword),
		Role:         b.role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// BuildActor stores the user and returns it as an actor
func (b *UserBuilder) BuildActor(t *testing.T, users repository.UserRepository) *domain.Actor {
	t.Helper()
	user, _ := b.Build(t, users)
	return user.Actor()
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// BuildAndAuthenticate stores the user and logs in through the API,
// returning the user and an access token.
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*domain.User, string) {
	t.Helper()

	user, password := b.Build(t, ts.Repos.User)
	authResp := Login(t, ts, user.Email, password)
	return user, authResp.AccessToken
}

// Login calls POST /auth/login and fails the test unless it succeeds
func Login(t *testing.T, ts *TestServer, email, password string) AuthResponse {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(ts.APIURL("/auth/login"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to log in: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected login status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return authResp
}

// MedicationBuilder creates test medications
type MedicationBuilder struct {
	owner     *domain.User
	name      string
	dosage    string
	startTime string
	endTime   string
}

// NewMedicationBuilder defaults to an 08:00-22:00 window
func NewMedicationBuilder() *MedicationBuilder {
	return &MedicationBuilder{
		name:      fmt.Sprintf("Medication %s", uuid.New().String()[:4]),
		dosage:    "10mg",
		startTime: "08:00",
		endTime:   "22:00",
	}
}

// WithOwner sets the owning user
func (b *MedicationBuilder) WithOwner(user *domain.User) *MedicationBuilder {
	b.owner = user
	return b
}

// WithName sets the medication name
func (b *MedicationBuilder) WithName(name string) *MedicationBuilder {
	b.name = name
	return b
}

// WithWindow sets the daily window as "HH:MM" values
func (b *MedicationBuilder) WithWindow(start, end string) *MedicationBuilder {
	b.startTime = start
	b.endTime = end
	return b
}

// Build stores the medication, creating an owner when none is set
func (b *MedicationBuilder) Build(t *testing.T, repos *repository.Repositories) *domain.Medication {
	t.Helper()

	if b.owner == nil {
		user, _ := NewUserBuilder().Build(t, repos.User)
		b.owner = user
	}

	start, err := domain.ParseTimeOfDay(b.startTime)
	if err != nil {
		t.Fatalf("invalid start time %q: %v", b.startTime, err)
	}
	end, err := domain.ParseTimeOfDay(b.endTime)
	if err != nil {
		t.Fatalf("invalid end time %q: %v", b.endTime, err)
	}

	medication := &domain.Medication{
		ID:        uuid.New(),
		OwnerID:   b.owner.ID,
		Name:      b.name,
		Dosage:    b.dosage,
		StartTime: start,
		EndTime:   end,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := repos.Medication.Create(context.Background(), medication); err != nil {
		t.Fatalf("failed to create medication: %v", err)
	}

	return medication
}

// CreateAuthenticatedRequest creates an HTTP request with auth token
func CreateAuthenticatedRequest(t *testing.T, method, url string, body interface{}, token string) *http.Request {
	t.Helper()

	var bodyReader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	} else {
		bodyReader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// Do sends req with the default client and fails the test on transport errors
func Do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
