package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/notify"
	"jobwatch-engine/internal/scrape/workday"
	"jobwatch-engine/internal/secrets"
	"jobwatch-engine/internal/seen"
	"jobwatch-engine/internal/store"
)

func openSeenStore(ctx context.Context, cfg config.Config) (seen.Store, error) {
	retention := cfg.Retention()
	switch cfg.Seen.Backend {
	case "sqlite":
		db, err := store.Open(dataPath(cfg, "jobwatch.db"))
		if err != nil {
			return nil, err
		}
		return store.NewSQLiteSeenStore(db, retention, nil), nil
	case "redis":
		rdb, err := store.DialRedis(ctx, cfg.Seen.RedisAddr)
		if err != nil {
			return nil, err
		}
		return store.NewRedisSeenStore(rdb, cfg.Seen.RedisKey, retention, nil), nil
	default:
		return seen.NewFileStore(dataPath(cfg, cfg.Seen.File), retention, nil), nil
	}
}

func dataPath(cfg config.Config, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(cfg.App.DataDir, name)
}

func buildEmployers(cfg config.Config) ([]domain.Employer, error) {
	out := make([]domain.Employer, 0, len(cfg.Sources.Workday.Employers))
	for _, e := range cfg.Sources.Workday.Employers {
		board, err := workday.ParseBoard(e.URL)
		if err != nil {
			return nil, fmt.Errorf("employer %q: %w", e.Name, err)
		}
		applyBase := e.ApplyBase
		if applyBase == "" {
			applyBase = board.ApplyBase()
		}
		out = append(out, domain.Employer{
			Name:        e.Name,
			Endpoint:    board.JobsEndpoint(),
			ApplyBase:   applyBase,
			SearchTerms: e.SearchTerms,
		})
	}
	return out, nil
}

func retryPolicy(cfg config.Config) workday.RetryPolicy {
	p := workday.DefaultRetryPolicy()
	p.MaxAttempts = cfg.Fetch.RetryAttempts
	p.BaseDelay = time.Duration(cfg.Fetch.RetryBaseMillis) * time.Millisecond
	p.MaxDelay = time.Duration(cfg.Fetch.RetryMaxMillis) * time.Millisecond
	return p
}

// buildNotifier assembles the enabled transports. A transport that cannot
// be set up is logged and left out; with none left alerts go to the log.
func buildNotifier(cfg config.Config) (notify.Notifier, func()) {
	var (
		ns     notify.Multi
		kafkas []*notify.Kafka
	)

	if cfg.Email.Enabled {
		pw, err := secrets.SMTPPassword(cfg)
		if err != nil {
			log.Printf("[notify] email disabled: %v", err)
		} else {
			e, err := notify.NewEmail(notify.EmailConfig{
				Host:     cfg.Email.SMTPHost,
				Port:     cfg.Email.SMTPPort,
				From:     cfg.Email.From,
				To:       cfg.Email.To,
				Password: pw,
			})
			if err != nil {
				log.Printf("[notify] email disabled: %v", err)
			} else {
				ns = append(ns, e)
			}
		}
	}

	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, "")
		if err != nil {
			log.Printf("[notify] telegram disabled: %v", err)
		} else {
			ns = append(ns, tg)
		}
	}

	if cfg.Kafka.Enabled {
		k := notify.NewKafka(cfg.Kafka.Broker, cfg.Kafka.Topic)
		kafkas = append(kafkas, k)
		ns = append(ns, k)
	}

	closeAll := func() {
		for _, k := range kafkas {
			if err := k.Close(); err != nil {
				log.Printf("[notify] kafka close: %v", err)
			}
		}
	}

	if len(ns) == 0 {
		log.Printf("[notify] no transport configured; alerts go to the log")
		return notify.Log{}, closeAll
	}
	log.Printf("[notify] transports=%s", ns.Name())
	return ns, closeAll
}
