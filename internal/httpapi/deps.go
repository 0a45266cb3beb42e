package httpapi

import (
	"context"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/poll"
)

// Runner is the part of the poll coordinator the API drives.
type Runner interface {
	RunCycle(ctx context.Context) (poll.CycleResult, error)
	Status() poll.Status
}

type Deps struct {
	// BaseCtx bounds cycles started through POST /scrape/run.
	BaseCtx context.Context

	Hub    *events.Hub
	Runner Runner

	Cfg         config.Config
	UserCfgPath string

	// SetSMTPPassword stores the SMTP credential; injected for tests.
	SetSMTPPassword func(account, password string) error
	SMTPAccount     string

	AllowedOrigins []string
}
