package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/dittosh/internal/cli/output"
	"github.com/marmos91/dittosh/internal/cli/prompt"
	"github.com/marmos91/dittosh/internal/cli/timeutil"
	"github.com/marmos91/dittosh/pkg/credentials"
	"github.com/spf13/cobra"
)

// minPasswordLength applies to passwords set through `user add` only;
// auto-registered users pick whatever they log in with.
const minPasswordLength = 8

var (
	userOutput   string
	userPassword string
	userForce    bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage registered users",
	Long: `Manage the credentials of the configured store.

Changes are written to the credential backend directly. A running server
reads the table once at start and does not see them until restarted.`,
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered users",
	Args:    cobra.NoArgs,
	RunE:    runUserList,
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register a user",
	Long: `Register a user. The password is prompted for unless --password is given.

Examples:
  dittosh user add alice
  dittosh user add bob --password "$BOB_PASSWORD"`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

var userRemoveCmd = &cobra.Command{
	Use:     "remove <username>",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove a user",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserRemove,
}

func init() {
	userListCmd.Flags().StringVarP(&userOutput, "output", "o", "table", "Output format (table, json, yaml)")
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "Password (prompted when empty)")
	userRemoveCmd.Flags().BoolVarP(&userForce, "force", "f", false, "Do not ask for confirmation")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userRemoveCmd)
}

// userList renders credentials without their digests.
type userList []*credentials.Credential

type userView struct {
	Username  string `json:"username" yaml:"username"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
	LastLogin string `json:"last_login" yaml:"last_login"`
}

func (l userList) Headers() []string {
	return []string{"Username", "Created", "Last login"}
}

func (l userList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, v := range l.views() {
		rows = append(rows, []string{v.Username, v.CreatedAt, v.LastLogin})
	}
	return rows
}

func (l userList) views() []userView {
	out := make([]userView, 0, len(l))
	for _, c := range l {
		out = append(out, userView{
			Username:  c.Username,
			CreatedAt: timeutil.Format(c.CreatedAt),
			LastLogin: timeutil.FormatOptional(c.LastLogin),
		})
	}
	return out
}

// withStore runs fn against the configured credential store.
func withStore(cmd *cobra.Command, fn func(context.Context, *credentials.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, backend, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	return fn(ctx, store)
}

func runUserList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(userOutput)
	if err != nil {
		return err
	}

	return withStore(cmd, func(_ context.Context, store *credentials.Store) error {
		users := userList(store.List())
		printer := output.NewPrinter(cmd.OutOrStdout(), format, false)

		if format != output.FormatTable {
			return printer.Print(users.views())
		}
		if len(users) == 0 {
			printer.Println("No users registered")
			return nil
		}
		return printer.Print(users)
	})
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username := args[0]
	if err := prompt.ValidateUsername(username); err != nil {
		return err
	}

	password := userPassword
	if password == "" {
		var err error
		if password, err = prompt.NewPassword(minPasswordLength); err != nil {
			return err
		}
	} else if err := prompt.MinLength(minPasswordLength)(password); err != nil {
		return fmt.Errorf("password %w", err)
	}

	return withStore(cmd, func(ctx context.Context, store *credentials.Store) error {
		if err := store.Add(ctx, username, password); err != nil {
			return err
		}
		output.NewPrinter(cmd.OutOrStdout(), output.FormatTable, false).Success(fmt.Sprintf("User %q added", username))
		return nil
	})
}

func runUserRemove(cmd *cobra.Command, args []string) error {
	username := args[0]

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Remove user %q", username), userForce)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	return withStore(cmd, func(ctx context.Context, store *credentials.Store) error {
		if err := store.Remove(ctx, username); err != nil {
			return err
		}
		output.NewPrinter(cmd.OutOrStdout(), output.FormatTable, false).Success(fmt.Sprintf("User %q removed", username))
		return nil
	})
}
