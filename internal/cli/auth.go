package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pfrederiksen/geop-sync/internal/config"
	"github.com/pfrederiksen/geop-sync/internal/crypto"
	"github.com/pfrederiksen/geop-sync/internal/logger"
	"github.com/pfrederiksen/geop-sync/internal/portal"
)

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Calendar",
		Long: `Auth runs the OAuth2 consent flow in the browser and stores the resulting
token. The token is encrypted when GEOPSYNC_PASSPHRASE is set.`,
		RunE: runAuth,
	}
}

func runAuth(cmd *cobra.Command, args []string) error {
	cfg, v, _, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	prov, err := provider(cfg, encryptor(v))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if _, err := prov.Authorize(ctx, cmd.ErrOrStderr()); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Google Calendar authorized.")
	return nil
}

func newPortalLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portal-login",
		Short: "Store the GEOP portal credentials in the config file",
		Long: `Portal-login prompts for the portal password, checks it against the portal
and saves it encrypted with a passphrase. The passphrase is read from
GEOPSYNC_PASSPHRASE, or prompted for when unset, and must be provided the same
way to every later sync.`,
		RunE: runPortalLogin,
	}
	cmd.Flags().StringVarP(&flagUsername, "username", "u", "", "Portal username (default from config)")
	cmd.Flags().BoolVar(&flagNoVerify, "no-verify", false, "Save without checking the credentials against the portal")
	return cmd
}

func runPortalLogin(cmd *cobra.Command, args []string) error {
	cfg, v, path, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	in := bufio.NewReader(cmd.InOrStdin())
	errOut := cmd.ErrOrStderr()
	tty := cmd.InOrStdin() == os.Stdin && term.IsTerminal(int(os.Stdin.Fd()))

	username := flagUsername
	if username == "" {
		username = cfg.Portal.Username
	}
	if username == "" {
		if username, err = prompt(in, errOut, "Portal username: "); err != nil {
			return err
		}
	}

	password, err := readSecret(in, errOut, tty, "Portal password: ")
	if err != nil {
		return err
	}
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}

	if !flagNoVerify {
		client, err := portal.New(cfg.Portal.BaseURL)
		if err != nil {
			return err
		}
		client.SetTimeout(cfg.Sync.CallTimeout)
		if err := client.Login(cmd.Context(), username, password); err != nil {
			return fmt.Errorf("verifying credentials: %w", err)
		}
		logger.Info("Portal credentials verified", logger.Fields{"username": username})
	}

	passphrase := v.GetString("passphrase")
	if passphrase == "" {
		if passphrase, err = newPassphrase(in, errOut, tty); err != nil {
			return err
		}
	}
	encrypted, err := crypto.NewEncryptor(passphrase).Encrypt(password)
	if err != nil {
		return err
	}

	// Save over the file contents only, not the environment overlay.
	stored, err := config.Load(path)
	if err != nil {
		return err
	}
	stored.Portal.Username = username
	stored.Portal.Password = encrypted
	if err := stored.Save(path); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Portal credentials saved to %s\n", path)
	return nil
}

// newPassphrase asks for a passphrase twice. Empty means plaintext storage.
func newPassphrase(in *bufio.Reader, out io.Writer, tty bool) (string, error) {
	first, err := readSecret(in, out, tty, "Encryption passphrase (empty to store in plaintext): ")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", nil
	}
	second, err := readSecret(in, out, tty, "Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passphrases do not match")
	}
	return first, nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo from a terminal, or a plain line otherwise.
func readSecret(in *bufio.Reader, out io.Writer, tty bool, label string) (string, error) {
	if !tty {
		return prompt(in, out, label)
	}
	fmt.Fprint(out, label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
