package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/api/option"

	"github.com/pfrederiksen/geop-sync/internal/audit"
	"github.com/pfrederiksen/geop-sync/internal/config"
	"github.com/pfrederiksen/geop-sync/internal/credentials"
	"github.com/pfrederiksen/geop-sync/internal/crypto"
	"github.com/pfrederiksen/geop-sync/internal/lesson"
	"github.com/pfrederiksen/geop-sync/internal/logger"
	"github.com/pfrederiksen/geop-sync/internal/portal"
	"github.com/pfrederiksen/geop-sync/internal/remote"
	"github.com/pfrederiksen/geop-sync/internal/storage"
	"github.com/pfrederiksen/geop-sync/internal/syncer"
)

// app holds the collaborators of one command invocation.
type app struct {
	cfg      *config.Config
	loc      *time.Location
	recorder audit.Recorder
	driver   *syncer.Driver
}

func encryptor(v *viper.Viper) *crypto.Encryptor {
	return crypto.NewEncryptor(v.GetString("passphrase"))
}

func tokenStore(cfg *config.Config, enc *crypto.Encryptor) (*credentials.TokenStore, error) {
	path, err := storage.ExpandHome(cfg.Calendar.TokenFile)
	if err != nil {
		return nil, err
	}
	return credentials.NewTokenStore(path, enc), nil
}

func provider(cfg *config.Config, enc *crypto.Encryptor) (*credentials.Provider, error) {
	store, err := tokenStore(cfg, enc)
	if err != nil {
		return nil, err
	}
	secrets, err := storage.ExpandHome(cfg.Calendar.CredentialsFile)
	if err != nil {
		return nil, err
	}
	return credentials.NewProvider(secrets, store)
}

// newApp wires the portal, calendar, snapshot storage and audit log into a
// sync driver.
func newApp(ctx context.Context, cfg *config.Config, v *viper.Viper, dryRun bool) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	from, to, err := cfg.DayWindow()
	if err != nil {
		return nil, err
	}

	enc := encryptor(v)
	password, err := enc.Decrypt(cfg.Portal.Password)
	if err != nil {
		return nil, fmt.Errorf("decrypting portal password (set GEOPSYNC_PASSPHRASE): %w", err)
	}
	if cfg.Portal.Username == "" || password == "" {
		return nil, errors.New("portal credentials missing, run 'geop-sync portal-login' first")
	}

	store, err := storage.New(cfg.Sync.DataDir)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	client, err := portal.New(cfg.Portal.BaseURL)
	if err != nil {
		return nil, err
	}
	client.SetTimeout(cfg.Sync.CallTimeout)

	prov, err := provider(cfg, enc)
	if err != nil {
		return nil, err
	}
	ts, err := prov.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	cal, err := remote.NewGoogle(ctx, remote.Options{
		CalendarID: cfg.Calendar.ID,
		Location:   loc,
		DayStart:   from,
		DayEnd:     to,
	}, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}

	var rec audit.Recorder = audit.Nop{}
	if cfg.Audit.PostgresDSN != "" && !dryRun {
		pg, err := audit.Connect(ctx, cfg.Audit.PostgresDSN)
		if err != nil {
			logger.Warn("Audit log disabled", logger.Fields{"error": err.Error()})
		} else {
			rec = pg
		}
	}

	driver := syncer.New(client, cal, store, rec, syncer.Options{
		Username:    cfg.Portal.Username,
		Password:    password,
		TimeZone:    cfg.Calendar.Timezone,
		CallTimeout: cfg.Sync.CallTimeout,
		Location:    loc,
		DayStart:    from,
		DayEnd:      to,
		DryRun:      dryRun,
	})

	return &app{
		cfg:      cfg,
		loc:      loc,
		recorder: rec,
		driver:   driver,
	}, nil
}

// window returns the sync range for the current week at now.
func (a *app) window(now time.Time) (lesson.Range, error) {
	maxEnd, err := a.cfg.MaxEnd()
	if err != nil {
		return lesson.Range{}, err
	}
	return lesson.WeeksRange(now.In(a.loc), a.cfg.Sync.Weeks, maxEnd)
}

func (a *app) Close() {
	a.recorder.Close()
}
