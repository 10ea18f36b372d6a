package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// DefaultProfileBaseURL is the public channel preview prefix.
const DefaultProfileBaseURL = "https://t.me/"

// profileCountClass is the CSS class of the element holding
// "12 345 subscribers" on a channel preview page.
const profileCountClass = "tgme_page_extra"

// ProfileEnricher reads member counts from public channel preview pages.
type ProfileEnricher struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewProfileEnricher creates an enricher. An empty baseURL uses DefaultProfileBaseURL.
func NewProfileEnricher(httpClient *http.Client, baseURL, userAgent string) *ProfileEnricher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if baseURL == "" {
		baseURL = DefaultProfileBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &ProfileEnricher{httpClient: httpClient, baseURL: baseURL, userAgent: userAgent}
}

// MemberCount fetches the preview page of username and returns its member count.
func (p *ProfileEnricher) MemberCount(ctx context.Context, username string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+username, nil)
	if err != nil {
		return 0, err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("channel page returned %s", resp.Status)
	}
	return ParseMemberCount(io.LimitReader(resp.Body, maxResponseBody))
}

// ParseMemberCount extracts the member count from a channel preview page.
func ParseMemberCount(r io.Reader) (int64, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return 0, err
	}

	var text string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && hasClass(n, profileCountClass) {
			text = textContent(n)
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	if !walk(doc) {
		return 0, ErrCountNotFound
	}
	return parseCount(text)
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// parseCount reads the leading number of texts such as "12 345 subscribers",
// "1,024 members" or "1.2K subscribers".
func parseCount(text string) (int64, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\u00a0' || r == '\u202f'
	})

	var digits strings.Builder
	multiplier := 1.0
	for _, f := range fields {
		f = strings.ReplaceAll(f, ",", "")
		if f == "" {
			continue
		}
		suffix := 1.0
		switch f[len(f)-1] {
		case 'K', 'k':
			suffix, f = 1e3, f[:len(f)-1]
		case 'M', 'm':
			suffix, f = 1e6, f[:len(f)-1]
		}
		if !isNumber(f) {
			break
		}
		digits.WriteString(f)
		if suffix != 1 {
			multiplier = suffix
			break
		}
	}
	if digits.Len() == 0 {
		return 0, ErrCountNotFound
	}
	v, err := strconv.ParseFloat(digits.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrCountNotFound, text)
	}
	return int64(v * multiplier), nil
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return false
		}
	}
	return true
}
