package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Employer struct {
	Name        string   `yaml:"name" json:"name"`
	URL         string   `yaml:"url" json:"url"` // board URL or .../wday/cxs/<tenant>/<site>/jobs
	ApplyBase   string   `yaml:"apply_base,omitempty" json:"apply_base,omitempty"`
	SearchTerms []string `yaml:"search_terms" json:"search_terms"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Polling struct {
		IntervalSeconds int `yaml:"interval_seconds" json:"interval_seconds"`
	} `yaml:"polling" json:"polling"`

	Sources struct {
		Workday struct {
			Employers []Employer `yaml:"employers" json:"employers"`
		} `yaml:"workday" json:"workday"`
	} `yaml:"sources" json:"sources"`

	Fetch struct {
		PageSize        int     `yaml:"page_size" json:"page_size"`
		MaxPages        int     `yaml:"max_pages" json:"max_pages"`
		TimeoutSeconds  int     `yaml:"timeout_seconds" json:"timeout_seconds"`
		RequestsPerSec  float64 `yaml:"requests_per_sec" json:"requests_per_sec"`
		RetryAttempts   int     `yaml:"retry_attempts" json:"retry_attempts"`
		RetryBaseMillis int     `yaml:"retry_base_ms" json:"retry_base_ms"`
		RetryMaxMillis  int     `yaml:"retry_max_ms" json:"retry_max_ms"`
		UserAgent       string  `yaml:"user_agent" json:"user_agent"`
	} `yaml:"fetch" json:"fetch"`

	Filters struct {
		RoleKeywords   []string `yaml:"role_keywords" json:"role_keywords"`
		LocationsAllow []string `yaml:"locations_allow" json:"locations_allow"`
		FreshMarker    string   `yaml:"fresh_marker" json:"fresh_marker"`
	} `yaml:"filters" json:"filters"`

	Seen struct {
		Backend             string `yaml:"backend" json:"backend"` // file | sqlite | redis
		File                string `yaml:"file" json:"file"`
		RetentionDays       int    `yaml:"retention_days" json:"retention_days"`
		NamespaceByEmployer bool   `yaml:"namespace_by_employer" json:"namespace_by_employer"`
		RedisAddr           string `yaml:"redis_addr" json:"redis_addr"`
		RedisKey            string `yaml:"redis_key" json:"redis_key"`
	} `yaml:"seen" json:"seen"`

	Email struct {
		Enabled  bool   `yaml:"enabled" json:"enabled"`
		SMTPHost string `yaml:"smtp_host" json:"smtp_host"`
		SMTPPort int    `yaml:"smtp_port" json:"smtp_port"`
		From     string `yaml:"from" json:"from"`
		To       string `yaml:"to" json:"to"`
		// Password is never read from YAML; see secrets.SMTPPassword.
		Password string `yaml:"-" json:"-"`
	} `yaml:"email" json:"email"`

	Telegram struct {
		Enabled bool   `yaml:"enabled" json:"enabled"`
		ChatID  int64  `yaml:"chat_id" json:"chat_id"`
		Token   string `yaml:"-" json:"-"`
	} `yaml:"telegram" json:"telegram"`

	Kafka struct {
		Enabled bool   `yaml:"enabled" json:"enabled"`
		Broker  string `yaml:"broker" json:"broker"`
		Topic   string `yaml:"topic" json:"topic"`
	} `yaml:"kafka" json:"kafka"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 38471
	}
	if cfg.Polling.IntervalSeconds == 0 {
		cfg.Polling.IntervalSeconds = 1800
	}
	if cfg.Fetch.PageSize == 0 {
		cfg.Fetch.PageSize = 20
	}
	if cfg.Fetch.MaxPages == 0 {
		cfg.Fetch.MaxPages = 50
	}
	if cfg.Fetch.TimeoutSeconds == 0 {
		cfg.Fetch.TimeoutSeconds = 10
	}
	if cfg.Fetch.RequestsPerSec == 0 {
		cfg.Fetch.RequestsPerSec = 2
	}
	if cfg.Fetch.RetryAttempts == 0 {
		cfg.Fetch.RetryAttempts = 3
	}
	if cfg.Fetch.RetryBaseMillis == 0 {
		cfg.Fetch.RetryBaseMillis = 500
	}
	if cfg.Fetch.RetryMaxMillis == 0 {
		cfg.Fetch.RetryMaxMillis = 4000
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	}
	if len(cfg.Filters.RoleKeywords) == 0 {
		cfg.Filters.RoleKeywords = []string{"student", "students", "intern", "interns"}
	}
	if cfg.Filters.FreshMarker == "" {
		cfg.Filters.FreshMarker = "today"
	}
	if cfg.Seen.Backend == "" {
		cfg.Seen.Backend = "file"
	}
	if cfg.Seen.File == "" {
		cfg.Seen.File = "seen_jobs.json"
	}
	if cfg.Seen.RetentionDays == 0 {
		cfg.Seen.RetentionDays = 90
	}
	if cfg.Seen.RedisKey == "" {
		cfg.Seen.RedisKey = "jobwatch:seen"
	}
	if cfg.Email.SMTPHost == "" {
		cfg.Email.SMTPHost = "smtp.gmail.com"
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	for i := range cfg.Sources.Workday.Employers {
		if len(cfg.Sources.Workday.Employers[i].SearchTerms) == 0 {
			cfg.Sources.Workday.Employers[i].SearchTerms = []string{""}
		}
	}
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

func (c Config) Retention() time.Duration {
	return time.Duration(c.Seen.RetentionDays) * 24 * time.Hour
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}
