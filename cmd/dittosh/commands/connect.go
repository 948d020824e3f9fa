package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/marmos91/dittosh/internal/cli/prompt"
	"github.com/marmos91/dittosh/pkg/client"
	"github.com/marmos91/dittosh/pkg/protocol"
	"github.com/marmos91/dittosh/pkg/transport"
	"github.com/spf13/cobra"
)

var (
	connectUser       string
	connectCAFile     string
	connectServerName string
	connectInsecure   bool
	connectTimeout    time.Duration
)

var connectCmd = &cobra.Command{
	Use:   "connect [host:port]",
	Short: "Open an interactive session on a dittosh server",
	Long: `Connect to a dittosh server, log in and run shell commands.

Commands: pwd, ls, cd <dir>, exit. End a line with "?" to list completions
for the text before it, e.g. "cd Doc?".

The server address defaults to localhost and the configured server port.

Examples:
  # Trust a server certificate signed by a private CA
  dittosh connect shell.example.com:7878 --ca-file ca.pem

  # Development server with a self-signed certificate
  dittosh connect --insecure --user alice`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVarP(&connectUser, "user", "u", os.Getenv("USER"), "Username to log in with")
	connectCmd.Flags().StringVar(&connectCAFile, "ca-file", "", "PEM file of CAs trusted for the server certificate")
	connectCmd.Flags().StringVar(&connectServerName, "server-name", "", "Expected name in the server certificate")
	connectCmd.Flags().BoolVarP(&connectInsecure, "insecure", "k", false, "Skip server certificate verification")
	connectCmd.Flags().DurationVar(&connectTimeout, "timeout", 30*time.Second, "Per-request timeout")
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("localhost:%d", cfg.Server.Port)
	if len(args) == 1 {
		addr = args[0]
	}

	tlsConfig, err := transport.ClientTLSConfig(transport.ClientConfig{
		CAFile:     connectCAFile,
		ServerName: connectServerName,
		Insecure:   connectInsecure,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := client.Dial(ctx, addr, client.Options{
		TLS:            tlsConfig,
		RequestTimeout: connectTimeout,
		MaxMessageSize: cfg.Server.MaxMessageSize.Int(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Connected to %s (%s protocol %s)\n", addr, protocol.Name, protocol.Version)

	if err := login(ctx, c, askCredentials, out); err != nil {
		return err
	}
	return runShell(ctx, c, prompt.Line, out)
}

// authClient is the part of *client.Client used to log in.
type authClient interface {
	Login(ctx context.Context, username, password string) error
}

// shellClient is the part of *client.Client used by the shell loop.
type shellClient interface {
	Exec(ctx context.Context, line string) (protocol.CommandResponse, error)
	Complete(ctx context.Context, input string) ([]string, error)
}

func askCredentials() (string, string, error) {
	username, err := prompt.Username(connectUser)
	if err != nil {
		return "", "", err
	}
	password, err := prompt.Password("Password")
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

// login asks for credentials until the server accepts them or closes the
// connection after too many failures.
func login(ctx context.Context, c authClient, ask func() (string, string, error), out io.Writer) error {
	for {
		username, password, err := ask()
		if err != nil {
			return err
		}

		err = c.Login(ctx, username, password)
		switch {
		case err == nil:
			_, _ = fmt.Fprintf(out, "Logged in as %s\n", username)
			return nil
		case errors.Is(err, client.ErrAuthRejected):
			_, _ = fmt.Fprintln(out, "Login failed")
		case errors.Is(err, client.ErrConnectionClosed):
			return errors.New("too many failed login attempts, server closed the connection")
		default:
			return err
		}
	}
}

// runShell reads lines until exit, end of input or a lost connection.
func runShell(ctx context.Context, c shellClient, readLine func(string) (string, error), out io.Writer) error {
	cwd := "/"
	for {
		line, err := readLine(cwd + " $")
		if err != nil {
			if prompt.IsAborted(err) || errors.Is(err, io.EOF) {
				_, _ = c.Exec(ctx, "exit")
				return nil
			}
			return err
		}

		if text, ok := strings.CutSuffix(line, "?"); ok {
			candidates, err := c.Complete(ctx, text)
			if errors.Is(err, protocol.ErrInvalidUTF8) {
				_, _ = fmt.Fprintln(out, "Input is not valid UTF-8")
				continue
			}
			if err != nil {
				return err
			}
			if len(candidates) > 0 {
				_, _ = fmt.Fprintln(out, strings.Join(candidates, "  "))
			}
			continue
		}

		resp, err := c.Exec(ctx, line)
		if errors.Is(err, protocol.ErrInvalidUTF8) {
			_, _ = fmt.Fprintln(out, "Input is not valid UTF-8")
			continue
		}
		if err != nil {
			return err
		}
		if resp.Text != "" {
			_, _ = fmt.Fprintln(out, resp.Text)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 || !resp.Success {
			continue
		}
		switch fields[0] {
		case "exit":
			return nil
		case "cd":
			if pwd, err := c.Exec(ctx, "pwd"); err == nil && pwd.Success {
				cwd = pwd.Text
			}
		}
	}
}
