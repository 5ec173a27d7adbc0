package model

import (
	"strings"
	"time"
)

// DefaultIntegrationFee is 25.00.
const DefaultIntegrationFee Amount = 2500

// Integration defaults and limits.
const (
	DefaultIntegrationRPM   = 200
	DefaultIntegrationQuota = 5

	MinIntegrationStringLen = 3
	MaxIntegrationStringLen = 50
)

// Integration is a partner integration owned by a user and addressed by
// a globally unique label and API key.
type Integration struct {
	ID        string    `json:"id"`
	String    string    `json:"string"`
	APIKey    string    `json:"-"` // Exposed only through IntegrationResponse
	Fee       Amount    `json:"fee"`
	RPM       int       `json:"rpm"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IntegrationResponse is the owner view, including the API key.
type IntegrationResponse struct {
	ID        string    `json:"id"`
	String    string    `json:"string"`
	APIKey    string    `json:"api_key"`
	Fee       Amount    `json:"fee"`
	RPM       int       `json:"rpm"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IntegrationPublicResponse is the list view; it never carries the API key.
type IntegrationPublicResponse struct {
	ID        string    `json:"id"`
	String    string    `json:"string"`
	Fee       Amount    `json:"fee"`
	RPM       int       `json:"rpm"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToResponse converts an Integration to its owner view.
func (i *Integration) ToResponse() IntegrationResponse {
	return IntegrationResponse{
		ID:        i.ID,
		String:    i.String,
		APIKey:    i.APIKey,
		Fee:       i.Fee,
		RPM:       i.RPM,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// ToPublicResponse converts an Integration to its list view.
func (i *Integration) ToPublicResponse() IntegrationPublicResponse {
	return IntegrationPublicResponse{
		ID:        i.ID,
		String:    i.String,
		Fee:       i.Fee,
		RPM:       i.RPM,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// NormalizeIntegrationString lower-cases s, collapses every run of
// characters outside [a-z0-9] into a single underscore and trims
// underscores from both ends. "My Shop!!" becomes "my_shop".
func NormalizeIntegrationString(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	return b.String()
}

// ValidIntegrationString reports whether a normalized label has an acceptable length.
func ValidIntegrationString(s string) bool {
	return len(s) >= MinIntegrationStringLen && len(s) <= MaxIntegrationStringLen
}
