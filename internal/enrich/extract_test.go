package enrich

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, base, body string) *Page {
	t.Helper()
	u, err := url.Parse(base)
	require.NoError(t, err)
	p, err := ParsePage(u, []byte(body))
	require.NoError(t, err)
	return p
}

func TestParsePage(t *testing.T) {
	p := mustParse(t, "https://parts.example/brakes/", `<html><head>
<title>  Calipers -
 Parts Example </title>
<meta property="og:site_name" content="Parts Example Inc">
<meta property="og:description" content="OEM and aftermarket brakes">
<script>var email = "hidden@script.example";</script>
</head><body><a href="../about">About us</a></body></html>`)

	assert.Equal(t, "Calipers - Parts Example", p.Title)
	assert.Equal(t, "Parts Example Inc", p.SiteName)
	assert.Equal(t, "OEM and aftermarket brakes", p.Description)
	require.Len(t, p.Links, 1)
	assert.Equal(t, "https://parts.example/about", p.Links[0].Href)
	assert.Equal(t, "About us", p.Links[0].Text)
	assert.NotContains(t, p.Text, "hidden@script.example")
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name     string
		page     Page
		expected string
	}{
		{"site name wins", Page{SiteName: "RockAuto", Title: "Home | Other"}, "RockAuto"},
		{"pipe takes last segment", Page{Title: "Brake Calipers | RockAuto"}, "RockAuto"},
		{"dash takes first segment", Page{Title: "Summit Racing - High Performance Parts"}, "Summit Racing"},
		{"plain title", Page{Title: "Engine Parts Co"}, "Engine Parts Co"},
		{"empty", Page{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractTitle(&tt.page))
		})
	}
}

func TestExtractEmails(t *testing.T) {
	links := []Link{
		{Href: "mailto:Sales@Parts.example?subject=Quote"},
		{Href: "https://parts.example/"},
	}
	text := "Email sales@parts.example or support@parts.example. Logo: logo@2x.png"

	got := ExtractEmails(text, links)

	assert.Equal(t, []string{"sales@parts.example", "support@parts.example"}, got)
}

func TestExtractPhones(t *testing.T) {
	links := []Link{{Href: "tel:+1-800-555-1234"}}
	text := "Call (800) 555-1234 or 212.555.9876.\nInternational: +44 20 7946 0958\nOrder #12345"

	got := ExtractPhones(text, links)

	assert.Equal(t, []string{"+1-800-555-1234", "212.555.9876", "+44 20 7946 0958"}, got)
}

func TestExtractAddresses(t *testing.T) {
	text := "Visit us at 1234 Main Street, Springfield, IL 62701 today\nWarehouse: 55 Industrial Pkwy Suite 200\nWe have 24 hour support"

	got := ExtractAddresses(text)

	assert.Equal(t, []string{"1234 Main Street, Springfield, IL 62701", "55 Industrial Pkwy Suite 200"}, got)
}

func TestExtractContactLinks(t *testing.T) {
	links := []Link{
		{Href: "https://parts.example/contact-us#form", Text: "Reach us"},
		{Href: "https://parts.example/p/123", Text: "Customer Service"},
		{Href: "https://parts.example/contact-us"},
		{Href: "mailto:contact@parts.example", Text: "Contact"},
		{Href: "https://parts.example/catalog", Text: "Catalog"},
	}

	got := ExtractContactLinks(links)

	assert.Equal(t, []string{"https://parts.example/contact-us", "https://parts.example/p/123"}, got)
}

func TestExtractSocialMedia(t *testing.T) {
	links := []Link{
		{Href: "https://www.facebook.com/sharer/sharer.php?u=x"},
		{Href: "https://www.facebook.com/partsexample"},
		{Href: "https://facebook.com/second"},
		{Href: "https://x.com/partsexample"},
		{Href: "https://twitter.com/intent/tweet?text=hi"},
		{Href: "https://www.youtube.com/@partsexample"},
		{Href: "https://www.linkedin.com/"},
		{Href: "https://box.com/partsexample"},
	}

	got := ExtractSocialMedia(links)

	assert.Equal(t, map[string]string{
		"facebook": "https://www.facebook.com/partsexample",
		"twitter":  "https://x.com/partsexample",
		"youtube":  "https://www.youtube.com/@partsexample",
	}, got)
}
