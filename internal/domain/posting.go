package domain

import "strings"

// Posting is one entry of a Workday jobPostings array.
type Posting struct {
	Title         string   `json:"title"`
	ExternalPath  string   `json:"externalPath"`
	LocationsText string   `json:"locationsText"`
	PostedOn      string   `json:"postedOn"`
	PostedOnDate  string   `json:"postedOnDate,omitempty"`
	BulletFields  []string `json:"bulletFields,omitempty"`
}

// Employer is one configured career portal.
type Employer struct {
	Name        string
	Endpoint    string // CXS jobs endpoint the search is POSTed to
	ApplyBase   string // public board URL; ExternalPath is appended to it
	SearchTerms []string
}

// ApplyURL is the public link for p on e's career site.
func (e Employer) ApplyURL(p Posting) string {
	path := strings.TrimSpace(p.ExternalPath)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(e.ApplyBase, "/") + path
}

// Identifier is the seen-set key for p. When namespaced the employer name is
// prefixed so that two employers sharing a path format cannot collide.
func (e Employer) Identifier(p Posting, namespaced bool) string {
	id := strings.TrimSpace(p.ExternalPath)
	if id == "" || !namespaced {
		return id
	}
	return strings.ToLower(e.Name) + ":" + id
}
