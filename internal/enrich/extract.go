package enrich

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is the parsed view of a supplier page that the extractors work on.
type Page struct {
	Base        *url.URL
	Title       string
	SiteName    string
	Description string
	Links       []Link
	Text        string
}

// Link is an anchor with its href resolved against the page URL.
type Link struct {
	Href string
	Text string
}

// ParsePage parses an HTML (or plain text) document.
func ParsePage(base *url.URL, body []byte) (*Page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	p := &Page{Base: base}
	var text strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Svg:
				return
			case atom.Title:
				if p.Title == "" {
					p.Title = collapse(nodeText(n))
				}
				return
			case atom.Meta:
				p.readMeta(n)
			case atom.A:
				if href := attr(n, "href"); href != "" {
					p.Links = append(p.Links, Link{Href: resolve(base, href), Text: collapse(nodeText(n))})
				}
			}
		}
		if n.Type == html.TextNode {
			if s := collapse(n.Data); s != "" {
				text.WriteString(s)
				text.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	p.Text = text.String()
	return p, nil
}

func (p *Page) readMeta(n *html.Node) {
	key := strings.ToLower(attr(n, "name"))
	if key == "" {
		key = strings.ToLower(attr(n, "property"))
	}
	content := collapse(attr(n, "content"))
	if content == "" {
		return
	}
	switch key {
	case "description":
		p.Description = content
	case "og:description":
		if p.Description == "" {
			p.Description = content
		}
	case "og:site_name", "application-name":
		if p.SiteName == "" {
			p.SiteName = content
		}
	}
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

var titleSeparators = []string{" | ", " – ", " — ", " - ", " :: ", ": "}

// ExtractTitle returns the company name: og:site_name when present, otherwise the
// brand segment of the <title>. "Brake Calipers | RockAuto" yields "RockAuto".
func ExtractTitle(p *Page) string {
	if p.SiteName != "" {
		return p.SiteName
	}
	title := p.Title
	for _, sep := range titleSeparators {
		if !strings.Contains(title, sep) {
			continue
		}
		parts := strings.Split(title, sep)
		if sep == " | " {
			return strings.TrimSpace(parts[len(parts)-1])
		}
		return strings.TrimSpace(parts[0])
	}
	return strings.TrimSpace(title)
}

// ExtractDescription returns the meta description.
func ExtractDescription(p *Page) string {
	return p.Description
}

var (
	reEmail = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,24}\b`)
	// North American numbers, with or without a country code, and international numbers
	// written with a leading +.
	rePhone = regexp.MustCompile(`(?:\+?1[\s.-]?)?\(?\b\d{3}\)?[\s.-]?\d{3}[\s.-]\d{4}\b|\+\d{1,3}(?:[\s.-]?\(?\d{1,4}\)?){2,5}`)
	reAddress = regexp.MustCompile(`\b\d{1,6}\s+(?:[A-Z0-9][A-Za-z0-9.'-]*\s+){1,5}` +
		`(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Way|Court|Ct|Highway|Hwy|Parkway|Pkwy|Place|Pl|Circle|Cir|Terrace|Ter)\b\.?` +
		`(?:,?\s+(?:Suite|Ste|Unit|#)\s*[A-Za-z0-9-]+)?` +
		`(?:,\s*[A-Z][A-Za-z .'-]{1,40})?` +
		`(?:,?\s+[A-Z]{2}\s+\d{5}(?:-\d{4})?)?`)
	reContactPath = regexp.MustCompile(`(?i)contact|about|support|help|customer[-_ ]?service|get[-_ ]in[-_ ]touch|locations?`)

	imageSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}
)

// ExtractEmails returns mailto: targets followed by addresses found in the text.
func ExtractEmails(text string, links []Link) []string {
	var out []string
	seen := map[string]bool{}
	add := func(e string) {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] || !reEmail.MatchString(e) {
			return
		}
		for _, suf := range imageSuffixes {
			if strings.HasSuffix(e, suf) {
				return
			}
		}
		seen[e] = true
		out = append(out, e)
	}
	for _, l := range links {
		if strings.HasPrefix(strings.ToLower(l.Href), "mailto:") {
			addr := l.Href[len("mailto:"):]
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			if unescaped, err := url.PathUnescape(addr); err == nil {
				addr = unescaped
			}
			add(addr)
		}
	}
	for _, m := range reEmail.FindAllString(text, -1) {
		add(m)
	}
	return out
}

// ExtractPhones returns tel: targets followed by phone numbers found in the text,
// deduplicated by digits.
func ExtractPhones(text string, links []Link) []string {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		p = collapse(p)
		d := digits(p)
		if len(d) < 10 || len(d) > 15 {
			return
		}
		key := strings.TrimPrefix(d, "1")
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, p)
	}
	for _, l := range links {
		if strings.HasPrefix(strings.ToLower(l.Href), "tel:") {
			num, err := url.PathUnescape(l.Href[len("tel:"):])
			if err != nil {
				num = l.Href[len("tel:"):]
			}
			add(num)
		}
	}
	for _, m := range rePhone.FindAllString(text, -1) {
		add(m)
	}
	return out
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ExtractAddresses finds street addresses line by line. Best effort: it recognises
// "<number> <name> <street suffix>[, city][, ST 12345]".
func ExtractAddresses(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, line := range strings.Split(text, "\n") {
		for _, m := range reAddress.FindAllString(line, -1) {
			m = strings.TrimRight(strings.TrimSpace(m), ",")
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// ExtractContactLinks returns http(s) links whose path or anchor text points at a
// contact, about or support page.
func ExtractContactLinks(links []Link) []string {
	var out []string
	seen := map[string]bool{}
	for _, l := range links {
		u, err := url.Parse(l.Href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		if !reContactPath.MatchString(u.Path) && !reContactPath.MatchString(l.Text) {
			continue
		}
		u.Fragment = ""
		s := u.String()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// socialPlatforms maps known social network domains to platform names.
var socialPlatforms = map[string]string{
	"facebook.com":  "facebook",
	"fb.com":        "facebook",
	"instagram.com": "instagram",
	"twitter.com":   "twitter",
	"x.com":         "twitter",
	"linkedin.com":  "linkedin",
	"youtube.com":   "youtube",
	"youtu.be":      "youtube",
	"tiktok.com":    "tiktok",
	"pinterest.com": "pinterest",
}

// ExtractSocialMedia returns the first profile link per platform. Share and intent
// links are skipped.
func ExtractSocialMedia(links []Link) map[string]string {
	out := map[string]string{}
	for _, l := range links {
		u, err := url.Parse(l.Href)
		if err != nil || u.Host == "" {
			continue
		}
		platform := platformFor(strings.ToLower(u.Hostname()))
		if platform == "" || out[platform] != "" {
			continue
		}
		p := strings.ToLower(u.Path)
		if strings.Contains(p, "sharer") || strings.Contains(p, "/share") || strings.Contains(p, "/intent/") {
			continue
		}
		if strings.Trim(p, "/") == "" {
			continue
		}
		out[platform] = l.Href
	}
	return out
}

func platformFor(host string) string {
	for domain, platform := range socialPlatforms {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return platform
		}
	}
	return ""
}
