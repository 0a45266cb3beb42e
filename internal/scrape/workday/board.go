package workday

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Board identifies one Workday career site.
type Board struct {
	Scheme string
	Host   string
	Tenant string
	Site   string
	Locale string
}

// ParseBoard accepts either the public board URL
// (https://acme.wd5.myworkdayjobs.com/en-US/External) or the CXS search
// endpoint (https://acme.wd5.myworkdayjobs.com/wday/cxs/acme/External/jobs).
func ParseBoard(raw string) (Board, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Board{}, errors.New("empty board url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Board{}, err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Host == "" {
		return Board{}, fmt.Errorf("missing host in %q", raw)
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return Board{}, fmt.Errorf("unexpected path %q", u.Path)
	}

	// /wday/cxs/<tenant>/<site>/jobs
	if len(segs) >= 4 && strings.EqualFold(segs[0], "wday") && strings.EqualFold(segs[1], "cxs") {
		return Board{
			Scheme: u.Scheme,
			Host:   u.Host,
			Tenant: segs[2],
			Site:   segs[3],
		}, nil
	}

	parts := strings.Split(u.Host, ".")
	if len(parts) < 3 {
		return Board{}, fmt.Errorf("unexpected host %q", u.Host)
	}
	tenant := parts[0]

	// Detect locale like "en-US" (case-insensitive)
	locale := ""
	if len(segs) >= 2 && looksLikeLocale(segs[0]) {
		locale = normalizeLocale(segs[0])
		segs = segs[1:]
	}

	site := segs[len(segs)-1]
	if site == "" {
		return Board{}, fmt.Errorf("could not derive site from path %q", u.Path)
	}

	return Board{
		Scheme: u.Scheme,
		Host:   u.Host,
		Tenant: tenant,
		Site:   site,
		Locale: locale,
	}, nil
}

func (b Board) JobsEndpoint() string {
	return fmt.Sprintf("%s://%s/wday/cxs/%s/%s/jobs", b.Scheme, b.Host, b.Tenant, b.Site)
}

// ApplyBase is the public board URL that a posting's externalPath is
// appended to.
func (b Board) ApplyBase() string {
	locale := b.Locale
	if locale == "" {
		locale = "en-US"
	}
	return fmt.Sprintf("%s://%s/%s/%s", b.Scheme, b.Host, locale, b.Site)
}

func looksLikeLocale(s string) bool {
	// accepts en-US, en-us, etc.
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != '-' {
		return false
	}
	return isAlpha(s[0:2]) && isAlpha(s[3:5])
}

func normalizeLocale(s string) string {
	s = strings.TrimSpace(s)
	if len(s) == 5 && s[2] == '-' {
		return strings.ToLower(s[0:2]) + "-" + strings.ToUpper(s[3:5])
	}
	return s
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return false
		}
	}
	return true
}
