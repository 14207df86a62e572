package models

import "time"

// EnrichmentResult is the outcome of scraping one supplier page.
// Success=false always carries Error; Success=true never does.
type EnrichmentResult struct {
	URL         string      `json:"url"`
	Success     bool        `json:"success"`
	StatusCode  int         `json:"status_code,omitempty"`
	CompanyName string      `json:"company_name,omitempty"`
	Description string      `json:"description,omitempty"`
	Contact     ContactInfo `json:"contact"`
	Error       string      `json:"error,omitempty"`
	FetchedAt   time.Time   `json:"fetched_at"`
}

// ContactInfo fields are independently optional; empty is not a failure.
type ContactInfo struct {
	Emails       []string          `json:"emails"`
	Phones       []string          `json:"phones"`
	Addresses    []string          `json:"addresses"`
	ContactLinks []string          `json:"contact_links"`
	SocialMedia  map[string]string `json:"social_media"`
}

// IsEmpty reports whether no contact signal was found.
func (c ContactInfo) IsEmpty() bool {
	return len(c.Emails) == 0 && len(c.Phones) == 0 && len(c.Addresses) == 0 &&
		len(c.ContactLinks) == 0 && len(c.SocialMedia) == 0
}

// FailedEnrichment builds a result for a URL that could not be fetched or parsed.
func FailedEnrichment(url, reason string) EnrichmentResult {
	if reason == "" {
		reason = "Failed to fetch page"
	}
	r := EnrichmentResult{URL: url, Success: false, Error: reason, FetchedAt: Now()}
	r.normalize()
	return r
}

func (r *EnrichmentResult) normalize() {
	if r == nil {
		return
	}
	if r.Contact.Emails == nil {
		r.Contact.Emails = []string{}
	}
	if r.Contact.Phones == nil {
		r.Contact.Phones = []string{}
	}
	if r.Contact.Addresses == nil {
		r.Contact.Addresses = []string{}
	}
	if r.Contact.ContactLinks == nil {
		r.Contact.ContactLinks = []string{}
	}
	if r.Contact.SocialMedia == nil {
		r.Contact.SocialMedia = map[string]string{}
	}
	r.FetchedAt = Timestamp(r.FetchedAt)
}

// Normalize fills nil contact collections.
func (r *EnrichmentResult) Normalize() {
	r.normalize()
}
