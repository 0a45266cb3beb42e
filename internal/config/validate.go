package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err folds the collected errors into one error, or nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return errors.New("config validation failed:\n- " + strings.Join(v.Errors, "\n- "))
}

// NormalizeAndValidate returns a normalized copy of cfg plus the validation
// result. Callers should refuse to start when the result is not OK.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Filters.RoleKeywords = trimList(out.Filters.RoleKeywords)
	out.Filters.LocationsAllow = trimList(out.Filters.LocationsAllow)
	out.Filters.FreshMarker = strings.TrimSpace(out.Filters.FreshMarker)

	employers := make([]Employer, 0, len(out.Sources.Workday.Employers))
	names := map[string]bool{}
	for i, e := range out.Sources.Workday.Employers {
		e.Name = strings.TrimSpace(e.Name)
		e.URL = strings.TrimSpace(e.URL)
		e.ApplyBase = strings.TrimRight(strings.TrimSpace(e.ApplyBase), "/")

		if e.Name == "" {
			res.addErr("sources.workday.employers[%d].name is required", i)
		} else if names[strings.ToLower(e.Name)] {
			res.addErr("sources.workday.employers[%d].name %q is duplicated", i, e.Name)
		}
		names[strings.ToLower(e.Name)] = true

		if u, err := url.Parse(e.URL); e.URL == "" || err != nil || u.Host == "" {
			res.addErr("sources.workday.employers[%d].url must be an absolute URL", i)
		}

		// An empty term is a valid "list everything" search.
		terms := make([]string, 0, len(e.SearchTerms))
		for _, t := range e.SearchTerms {
			terms = append(terms, strings.TrimSpace(t))
		}
		if len(terms) == 0 {
			terms = []string{""}
		}
		e.SearchTerms = terms
		employers = append(employers, e)
	}
	out.Sources.Workday.Employers = employers

	if len(employers) == 0 {
		res.addWarn("no workday employers configured; scan cycles will do nothing")
	}

	if out.Polling.IntervalSeconds <= 0 {
		res.addErr("polling.interval_seconds must be > 0")
	} else if out.Polling.IntervalSeconds < 60 {
		res.addWarn("polling.interval_seconds is very low (%d) and may cause rate limits.", out.Polling.IntervalSeconds)
	}

	if out.Fetch.PageSize < 1 || out.Fetch.PageSize > 100 {
		res.addErr("fetch.page_size must be 1..100")
	}
	if out.Fetch.MaxPages < 1 {
		res.addErr("fetch.max_pages must be >= 1")
	}
	if out.Fetch.TimeoutSeconds < 1 {
		res.addErr("fetch.timeout_seconds must be >= 1")
	}
	if out.Fetch.RetryAttempts < 1 {
		res.addErr("fetch.retry_attempts must be >= 1")
	}
	if out.Fetch.RetryBaseMillis < 0 || out.Fetch.RetryMaxMillis < 0 {
		res.addErr("fetch.retry_base_ms and fetch.retry_max_ms must be >= 0")
	}
	if out.Fetch.RequestsPerSec <= 0 {
		res.addErr("fetch.requests_per_sec must be > 0")
	}

	if len(out.Filters.RoleKeywords) == 0 {
		res.addErr("filters.role_keywords must have at least 1 term")
	}
	if len(out.Filters.LocationsAllow) == 0 {
		res.addWarn("filters.locations_allow is empty; no posting will match.")
	}
	if out.Filters.FreshMarker == "" {
		res.addErr("filters.fresh_marker is required")
	}

	switch out.Seen.Backend {
	case "file":
		if strings.TrimSpace(out.Seen.File) == "" {
			res.addErr("seen.file is required when seen.backend=file")
		}
	case "sqlite":
	case "redis":
		if strings.TrimSpace(out.Seen.RedisAddr) == "" {
			res.addErr("seen.redis_addr is required when seen.backend=redis")
		}
	default:
		res.addErr("seen.backend must be one of file, sqlite, redis (got %q)", out.Seen.Backend)
	}
	if out.Seen.RetentionDays <= 0 {
		res.addErr("seen.retention_days must be > 0")
	}

	// Missing credentials degrade to scan-without-alerting rather than failing.
	if out.Email.Enabled {
		if strings.TrimSpace(out.Email.SMTPHost) == "" || out.Email.SMTPPort <= 0 {
			res.addErr("email.smtp_host and email.smtp_port are required when email.enabled=true")
		}
		if strings.TrimSpace(out.Email.From) == "" {
			res.addWarn("email.from is empty (set SCRAPER_EMAIL); email alerts are disabled.")
		}
	}
	if out.Telegram.Enabled && out.Telegram.ChatID == 0 {
		res.addWarn("telegram.chat_id is empty (set TELEGRAM_CHAT_ID); telegram alerts are disabled.")
	}
	if out.Kafka.Enabled && (strings.TrimSpace(out.Kafka.Broker) == "" || strings.TrimSpace(out.Kafka.Topic) == "") {
		res.addErr("kafka.broker and kafka.topic are required when kafka.enabled=true")
	}

	return out, res
}
