package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/tim-projects/omniauth/assist"
	"github.com/tim-projects/omniauth/internal/config"
	"github.com/tim-projects/omniauth/internal/logging"
	"github.com/tim-projects/omniauth/vault"
)

// application carries the dependencies shared by every command.
// Fields left nil by the caller are built from the configuration.
type application struct {
	cfg     *config.Config
	log     logging.Logger
	store   vault.Store
	decoder assist.QRDecoder
	advisor assist.Advisor
	now     func() time.Time

	stdin        *os.File
	readPassword func(fd int) ([]byte, error)
}

func newApp() (*cli.App, *application) {
	a := &application{
		now:          time.Now,
		stdin:        os.Stdin,
		readPassword: term.ReadPassword,
	}

	app := &cli.App{
		Name:  "omniauth",
		Usage: "generate two-factor authentication codes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a JSON configuration file",
				EnvVars: []string{"OMNIAUTH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "store",
				Usage:   "path to the account store",
				EnvVars: []string{"OMNIAUTH_STORE"},
			},
			&cli.StringFlag{
				Name:    "backup-dir",
				Usage:   "directory for backup exports",
				EnvVars: []string{"OMNIAUTH_BACKUP_DIR"},
			},
			&cli.StringFlag{
				Name:    "qr-command",
				Usage:   "external QR reader receiving the image on stdin",
				EnvVars: []string{"OMNIAUTH_QR_COMMAND"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"OMNIAUTH_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "text or json",
				EnvVars: []string{"OMNIAUTH_LOG_FORMAT"},
			},
		},
		Before: a.setup,
		Commands: []*cli.Command{
			codesCommand(a),
			listCommand(a),
			addCommand(a),
			addURICommand(a),
			uriCommand(a),
			qrCommand(a),
			deleteCommand(a),
			exportCommand(a),
			importCommand(a),
			importAegisCommand(a),
			scanCommand(a),
			adviseCommand(a),
		},
	}

	return app, a
}

// setup loads the configuration and builds the logger, store and helpers.
func (a *application) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if c.IsSet("store") {
		cfg.StorePath = c.String("store")
	}
	if c.IsSet("backup-dir") {
		cfg.BackupDir = c.String("backup-dir")
	}
	if c.IsSet("qr-command") {
		cfg.QRCommand = c.String("qr-command")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}

	a.cfg = cfg

	log, err := logging.New(c.App.ErrWriter, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.log = log

	if a.store == nil {
		a.store = vault.NewFileStore(cfg.StorePath, a.log)
	}

	if a.decoder == nil {
		a.decoder = assist.Offline{}
		if cfg.QRCommand != "" {
			decoder, err := assist.NewCommandDecoder(cfg.QRCommand)
			if err != nil {
				return err
			}
			a.decoder = decoder
		}
	}

	if a.advisor == nil {
		a.advisor = assist.Offline{}
	}

	a.log.Debug(c.Context, "configuration loaded", "store", cfg.StorePath, "backup_dir", cfg.BackupDir)

	return nil
}

// mutate loads the collection, applies fn and saves the result.
// Nothing is saved when fn fails.
func (a *application) mutate(ctx context.Context, fn func(*vault.Collection) error) error {
	collection, err := a.store.Load(ctx)
	if err != nil {
		return err
	}

	if err := fn(collection); err != nil {
		return err
	}

	return a.store.Save(ctx, collection)
}

// promptPassword reads a password from the terminal without echo.
func (a *application) promptPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Enter password: "); err != nil {
		return nil, err
	}

	pw, err := a.readPassword(int(a.stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}

	return pw, nil
}
