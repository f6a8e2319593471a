package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/HairScan-Mara/Scan-Service/internal/configuration"
	"github.com/HairScan-Mara/Scan-Service/internal/models"
)

// ContactsService resolves a subject identifier to a display profile via
// the external contacts directory. Read-only and non-critical: callers must
// be able to finish ingestion with a bare identifier when this fails.
type ContactsService struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewContactsService(cfg configuration.ContactsConfig) *ContactsService {
	return &ContactsService{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether a directory endpoint is set at all.
func (s *ContactsService) Configured() bool {
	return s != nil && s.BaseURL != ""
}

type contactAPIResponse struct {
	ID         string `json:"id"`
	Properties struct {
		FirstName string `json:"firstname"`
		LastName  string `json:"lastname"`
		Email     string `json:"email"`
	} `json:"properties"`
}

// Resolve looks up one contact by id. 404 maps to ErrNotFound, 401/403 to
// ErrUpstreamAuth, anything else non-200 to ErrBackend.
func (s *ContactsService) Resolve(ctx context.Context, contactID string) (*models.Contact, error) {
	if strings.TrimSpace(contactID) == "" {
		return nil, fmt.Errorf("%w: contact id is required", models.ErrValidation)
	}
	if !s.Configured() {
		return nil, fmt.Errorf("%w: contacts directory not configured", models.ErrBackend)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/contacts/"+contactID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build contact request: %v", models.ErrBackend, err)
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: contact lookup failed: %v", models.ErrBackend, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: contact %s", models.ErrNotFound, contactID)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: contacts directory returned %d", models.ErrUpstreamAuth, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: contacts directory returned %d", models.ErrBackend, resp.StatusCode)
	}

	var parsed contactAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode contact response: %v", models.ErrBackend, err)
	}

	contact := &models.Contact{
		ID:        parsed.ID,
		FirstName: parsed.Properties.FirstName,
		LastName:  parsed.Properties.LastName,
		Email:     parsed.Properties.Email,
	}
	contact.FullName = strings.TrimSpace(contact.FirstName + " " + contact.LastName)
	return contact, nil
}
