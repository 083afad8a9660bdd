package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIClient handles HTTP communication with the backend
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL + "/api/v1",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Response types matching backend

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type AuthResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Medication struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	WithinWindow bool   `json:"withinWindow"`
	WindowState  string `json:"windowState"`
}

type Dose struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medicationId"`
	TakenAt      time.Time `json:"takenAt"`
	Notes        *string   `json:"notes"`
}

type HistoryEntry struct {
	Dose       Dose `json:"dose"`
	Medication *struct {
		Name   string `json:"name"`
		Dosage string `json:"dosage"`
	} `json:"medication"`
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatusError is returned for any non-2xx response
type StatusError struct {
	Status int
	Code   string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d (%s): %s", e.Status, e.Code, e.Body)
}

// Login authenticates and returns the session tokens
func (c *APIClient) Login(email, password string) (*AuthResponse, error) {
	var result AuthResponse
	err := c.do(http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "", http.StatusOK, &result)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &result, nil
}

// CreateUser creates an account through the admin API
func (c *APIClient) CreateUser(adminToken, email, password, role string) (*User, error) {
	var user User
	err := c.do(http.MethodPost, "/admin/users", map[string]string{
		"email":    email,
		"password": password,
		"role":     role,
	}, adminToken, http.StatusCreated, &user)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// CreateMedication adds a medication with a daily window
func (c *APIClient) CreateMedication(token, name, dosage, start, end string) (*Medication, error) {
	var med Medication
	err := c.do(http.MethodPost, "/medications", map[string]string{
		"name":      name,
		"dosage":    dosage,
		"startTime": start,
		"endTime":   end,
	}, token, http.StatusCreated, &med)
	if err != nil {
		return nil, fmt.Errorf("create medication: %w", err)
	}
	return &med, nil
}

// ListMedications returns the caller's medications with their window state
func (c *APIClient) ListMedications(token string) ([]Medication, error) {
	var meds []Medication
	if err := c.do(http.MethodGet, "/medications", nil, token, http.StatusOK, &meds); err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return meds, nil
}

// RecordDose records a dose now. A dose outside the window without confirm
// comes back as a *StatusError with code out_of_window_unconfirmed.
func (c *APIClient) RecordDose(token, medicationID string, confirm bool) (*Dose, error) {
	var dose Dose
	err := c.do(http.MethodPost, "/medications/"+medicationID+"/doses", map[string]bool{
		"confirmOutsideWindow": confirm,
	}, token, http.StatusCreated, &dose)
	if err != nil {
		return nil, err
	}
	return &dose, nil
}

// RecordManualDose back-fills a dose at takenAt
func (c *APIClient) RecordManualDose(token, medicationID string, takenAt time.Time, notes string) (*Dose, error) {
	var dose Dose
	err := c.do(http.MethodPost, "/medications/"+medicationID+"/doses/manual", map[string]interface{}{
		"takenAt": takenAt.Format(time.RFC3339),
		"notes":   notes,
	}, token, http.StatusCreated, &dose)
	if err != nil {
		return nil, fmt.Errorf("record manual dose: %w", err)
	}
	return &dose, nil
}

// History returns the caller's dose history, newest first
func (c *APIClient) History(token string) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	if err := c.do(http.MethodGet, "/history", nil, token, http.StatusOK, &entries); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return entries, nil
}

// HTTP helpers

func (c *APIClient) do(method, path string, body interface{}, token string, want int, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		raw, _ := io.ReadAll(resp.Body)
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		return &StatusError{Status: resp.StatusCode, Code: apiErr.Code, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
