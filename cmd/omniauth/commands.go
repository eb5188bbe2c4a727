package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/tim-projects/omniauth"
	"github.com/tim-projects/omniauth/assist"
	"github.com/tim-projects/omniauth/otp"
	"github.com/tim-projects/omniauth/otpauth"
	"github.com/tim-projects/omniauth/vault"
)

const clearScreen = "\033[H\033[2J"

var (
	errMissingArgument = errors.New("missing argument")
	errInvalidFlag     = errors.New("invalid flag value")
)

func requireArg(c *cli.Context, name string) (string, error) {
	if c.Args().Len() < 1 {
		return "", fmt.Errorf("%w: %s", errMissingArgument, name)
	}

	return c.Args().First(), nil
}

func displayName(account vault.Account) string {
	return fmt.Sprintf("%s (%s)", account.Issuer, account.Label)
}

func codesCommand(a *application) *cli.Command {
	return &cli.Command{
		Name:      "codes",
		Aliases:   []string{"c"},
		Usage:     "show the current code of every account",
		ArgsUsage: "[search]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "refresh until interrupted"},
			&cli.DurationFlag{Name: "interval", Value: time.Second, Usage: "refresh interval in watch mode"},
		},
		Action: func(c *cli.Context) error {
			collection, err := a.store.Load(c.Context)
			if err != nil {
				return err
			}

			accounts := collection.Search(c.Args().First())
			w := c.App.Writer

			if !c.Bool("watch") {
				a.renderCodes(c, w, accounts)
				return nil
			}

			interval := c.Duration("interval")
			if interval <= 0 {
				return fmt.Errorf("%w: interval must be positive", errInvalidFlag)
			}

			var redraw bool
			if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				redraw = true
			}

			for {
				if redraw {
					fmt.Fprint(w, clearScreen)
				}
				a.renderCodes(c, w, accounts)

				timer := time.NewTimer(a.nextRefresh(accounts, interval))
				select {
				case <-c.Context.Done():
					timer.Stop()
					return nil
				case <-timer.C:
					if !redraw {
						fmt.Fprintln(w)
					}
				}
			}
		},
	}
}

// nextRefresh waits at most interval, waking early when a window ends.
func (a *application) nextRefresh(accounts []vault.Account, interval time.Duration) time.Duration {
	var wait time.Duration = interval
	var now time.Time = a.now()

	for _, account := range accounts {
		if next := omniauth.TimeToNext(account.Period, now); next > 0 && next < wait {
			wait = next
		}
	}

	return wait
}

// renderCodes prints one line per account. Accounts that fail show an
// error marker instead of a code.
func (a *application) renderCodes(c *cli.Context, w io.Writer, accounts []vault.Account) {
	if len(accounts) == 0 {
		fmt.Fprintln(w, "no accounts")
		return
	}

	results, _ := omniauth.GetCodes(accounts, a.now())

	for _, result := range results {
		if result.Err != nil {
			cause := result.Err
			var accountErr *omniauth.AccountError
			if errors.As(cause, &accountErr) {
				cause = accountErr.Err
			}

			a.log.Warn(c.Context, "code generation failed", "account_id", result.Account.ID, "error", cause)
			fmt.Fprintf(w, "%-40s %s\n", displayName(result.Account), "error: "+cause.Error())
			continue
		}

		fmt.Fprintf(w, "%-40s %s  %2ds\n", displayName(result.Account), result.Code.Code, result.Code.RemainingTime)
	}
}

func listCommand(a *application) *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "list accounts with their ids",
		ArgsUsage: "[search]",
		Action: func(c *cli.Context) error {
			collection, err := a.store.Load(c.Context)
			if err != nil {
				return err
			}

			for _, account := range collection.Search(c.Args().First()) {
				fmt.Fprintf(c.App.Writer, "%s  %s  %s %dd/%ds\n",
					account.ID, displayName(account), account.Algorithm, account.Digits, account.Period)
			}

			return nil
		},
	}
}

func addCommand(a *application) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "add an account from its secret key",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "issuer", Aliases: []string{"i"}, Required: true, Usage: "service name"},
			&cli.StringFlag{Name: "account", Aliases: []string{"a"}, Required: true, Usage: "account name"},
			&cli.StringFlag{Name: "secret", Aliases: []string{"s"}, Required: true, Usage: "Base32 secret key"},
			&cli.StringFlag{Name: "algorithm", Value: string(otp.DefaultAlgorithm), Usage: "SHA1, SHA256 or SHA512"},
			&cli.IntFlag{Name: "digits", Value: otp.DefaultDigits, Usage: "code length"},
			&cli.Int64Flag{Name: "period", Value: otp.DefaultPeriod, Usage: "refresh interval in seconds"},
		},
		Action: func(c *cli.Context) error {
			algo, err := otp.ParseAlgorithm(c.String("algorithm"))
			if err != nil {
				return err
			}

			account, err := vault.NewAccount(c.String("issuer"), c.String("account"), c.String("secret"),
				algo, c.Int("digits"), c.Int64("period"), a.now())
			if err != nil {
				return err
			}

			return a.addAccount(c, account)
		},
	}
}

func addURICommand(a *application) *cli.Command {
	return &cli.Command{
		Name:      "add-uri",
		Usage:     "add an account from an otpauth:// provisioning URI",
		ArgsUsage: "<uri>",
		Action: func(c *cli.Context) error {
			uri, err := requireArg(c, "uri")
			if err != nil {
				return err
			}

			key, err := otpauth.Parse(uri)
			if err != nil {
				return err
			}

			account, err := vault.FromKey(key, a.now())
			if err != nil {
				return err
			}

			return a.addAccount(c, account)
		},
	}
}

func (a *application) addAccount(c *cli.Context, account vault.Account) error {
	err := a.mutate(c.Context, func(collection *vault.Collection) error {
		collection.Add(account)
		return nil
	})
	if err != nil {
		return err
	}

	a.log.Info(c.Context, "account added", "account_id", account.ID, "issuer", account.Issuer)
	fmt.Fprintf(c.App.Writer, "added %s %s\n", account.ID, displayName(account))

	return nil
}

func uriCommand(a *application) *cli.Command {
	return &cli.Command{
		Name:      "uri",
		Usage:     "print the provisioning URI of an account",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			account, err := a.findAccount(c)
			if err != nil {
				return err
			}

			fmt.Fprintln(c.App.Writer, account.URI())

			return nil
		},
	}
}

func qrCommand(a *application) *cli.Command {
	return &cli.Command{
		Name:      "qr",
		Usage:     "render the provisioning URI of an account as a QR code",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write a PNG file instead of printing to the terminal"},
			&cli.IntFlag{Name: "size", Value: 256, Usage: "PNG width and height in pixels"},
		},
		Action: func(c *cli.Context) error {
			account, err := a.findAccount(c)
			if err != nil {
				return err
			}

			if output := c.String("output"); output != "" {
				if err := qrcode.WriteFile(account.URI(), qrcode.Medium, c.Int("size"), output); err != nil {
					return fmt.Errorf("write qr code: %w", err)
				}
				fmt.Fprintf(c.App.Writer, "wrote %s\n", output)
				return nil
			}

			q, err := qrcode.New(account.URI(), qrcode.Medium)
			if err != nil {
				return fmt.Errorf("encode qr code: %w", err)
			}
			fmt.Fprint(c.App.Writer, q.ToSmallString(false))

			return nil
		},
	}
}

func (a *application) findAccount(c *cli.Context) (vault.Account, error) {
	id, err := requireArg(c, "id")
	if err != nil {
		return vault.Account{}, err
	}

	collection, err := a.store.Load(c.Context)
	if err != nil {
		return vault.Account{}, err
	}

	return collection.Find(id)
}

func deleteCommand(a *application) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "delete an account",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "id")
			if err != nil {
				return err
			}

			err = a.mutate(c.Context, func(collection *vault.Collection) error {
				return collection.Delete(id)
			})
			if err != nil {
				return err
			}

			a.log.Info(c.Context, "account deleted", "account_id", id)
			fmt.Fprintf(c.App.Writer, "deleted %s\n", id)

			return nil
		},
	}
}

func exportCommand(a *application) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write every account to a backup file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "backup file (default: dated file in the backup directory)"},
		},
		Action: func(c *cli.Context) error {
			collection, err := a.store.Load(c.Context)
			if err != nil {
				return err
			}

			data, err := collection.Export()
			if err != nil {
				return err
			}

			path := c.String("output")
			if path == "" {
				path = filepath.Join(a.cfg.BackupDir, omniauth.BackupFileName(a.now()))
			}

			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("write backup: %w", err)
			}

			a.log.Info(c.Context, "accounts exported", "path", path, "count", collection.Len())
			fmt.Fprintf(c.App.Writer, "exported %d accounts to %s\n", collection.Len(), path)

			return nil
		},
	}
}

func importCommand(a *application) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "append the accounts of a backup file",
		ArgsUsage: "[file] (default: latest backup in the backup directory)",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				latest, err := omniauth.FindBackupPath(a.cfg.BackupDir)
				if err != nil {
					return err
				}
				path = latest
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read backup: %w", err)
			}

			var imported int
			err = a.mutate(c.Context, func(collection *vault.Collection) error {
				n, err := collection.Import(data)
				imported = n
				return err
			})
			if err != nil {
				a.log.Warn(c.Context, "import rejected", "path", path, "error", err)
				return err
			}

			a.log.Info(c.Context, "accounts imported", "path", path, "count", imported)
			fmt.Fprintf(c.App.Writer, "imported %d accounts from %s\n", imported, path)

			return nil
		},
	}
}

func importAegisCommand(a *application) *cli.Command {
	return &cli.Command{
		Name:      "import-aegis",
		Usage:     "append the TOTP accounts of an Aegis Authenticator backup",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "password", Usage: "backup password (prompted when omitted)", EnvVars: []string{"OMNIAUTH_AEGIS_PASSWORD"}},
		},
		Action: func(c *cli.Context) error {
			path, err := requireArg(c, "file")
			if err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read aegis backup: %w", err)
			}

			encrypted, err := vault.IsAegisEncrypted(data)
			if err != nil {
				return err
			}

			var password []byte
			if encrypted {
				password = []byte(c.String("password"))
				if len(password) == 0 {
					password, err = a.promptPassword(c.App.ErrWriter)
					if err != nil {
						return err
					}
				}
				defer clear(password)
			}

			result, err := vault.ReadAegisBackup(data, password, a.now())
			if err != nil {
				return err
			}

			err = a.mutate(c.Context, func(collection *vault.Collection) error {
				collection.Add(result.Accounts...)
				return nil
			})
			if err != nil {
				return err
			}

			a.log.Info(c.Context, "aegis backup imported", "path", path, "count", len(result.Accounts), "skipped", result.Skipped)
			fmt.Fprintf(c.App.Writer, "imported %d accounts, skipped %d unsupported entries\n", len(result.Accounts), result.Skipped)

			return nil
		},
	}
}

func scanCommand(a *application) *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "add an account from a QR code image",
		ArgsUsage: "<image>",
		Action: func(c *cli.Context) error {
			path, err := requireArg(c, "image")
			if err != nil {
				return err
			}

			image, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			key, err := assist.ScanKey(c.Context, a.decoder, image)
			if errors.Is(err, assist.ErrUnavailable) {
				a.log.Warn(c.Context, "qr reader unavailable", "error", err)
				return fmt.Errorf("%w (configure --qr-command or use add-uri)", err)
			}
			if err != nil {
				return err
			}

			account, err := vault.FromKey(key, a.now())
			if err != nil {
				return err
			}

			return a.addAccount(c, account)
		},
	}
}

func adviseCommand(a *application) *cli.Command {
	return &cli.Command{
		Name:      "advise",
		Usage:     "ask for two-factor security advice",
		ArgsUsage: "<question>",
		Action: func(c *cli.Context) error {
			query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if query == "" {
				return fmt.Errorf("%w: question", errMissingArgument)
			}

			text, err := assist.Advice(c.Context, a.advisor, query)
			if err != nil {
				a.log.Warn(c.Context, "advisor failed", "error", err)
			}

			fmt.Fprintln(c.App.Writer, text)

			return nil
		},
	}
}
