// Package lead defines the normalized lead record that a campaign run
// operates on. A Context is assembled by the caller (CRM reader, CLI file
// loader) and is immutable for the lifetime of a run.
package lead

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
)

// ErrInvalidInput is returned when a lead record is missing required
// identity fields. Runs terminate immediately on this error; it is never
// retried.
var ErrInvalidInput = errors.New("invalid lead input")

// Context is the normalized view of a lead plus company/website signals.
type Context struct {
	// Identity
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	Company string `json:"company" yaml:"company"`

	// Contact channels (either may be empty)
	Email      string `json:"email,omitempty" yaml:"email,omitempty"`
	NetworkURL string `json:"network_url,omitempty" yaml:"network_url,omitempty"`

	// Company signals
	CompanyDescription string   `json:"company_description,omitempty" yaml:"company_description,omitempty"`
	Services           []string `json:"services,omitempty" yaml:"services,omitempty"`
	CommunicationTone  string   `json:"communication_tone,omitempty" yaml:"communication_tone,omitempty"`
	PageText           string   `json:"page_text,omitempty" yaml:"page_text,omitempty"`
}

// Validate checks the required identity fields. Sparse company signals are
// fine; missing identity is not.
func (c *Context) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Company) == "" {
		missing = append(missing, "company")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing fields %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// FirstName returns the first whitespace-separated token of the lead name.
func (c *Context) FirstName() string {
	fields := strings.Fields(c.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// HasValidEmail reports whether the lead carries a syntactically valid
// email address.
func (c *Context) HasValidEmail() bool {
	if strings.TrimSpace(c.Email) == "" {
		return false
	}
	addr, err := mail.ParseAddress(c.Email)
	return err == nil && strings.Contains(addr.Address, "@")
}

// HasNetworkURL reports whether the lead carries a usable professional
// network profile URL.
func (c *Context) HasNetworkURL() bool {
	raw := strings.TrimSpace(c.NetworkURL)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SignalText concatenates the free-text company signals for rule matching.
func (c *Context) SignalText() string {
	parts := []string{c.CompanyDescription, strings.Join(c.Services, " "), c.PageText, c.Title}
	return strings.ToLower(strings.Join(parts, " "))
}
