package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/config"
	"github.com/zulandar/planyard/internal/db"
	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
	"github.com/zulandar/planyard/internal/user"
)

// connectFromConfig loads config and returns a GORM DB connection.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.Database.Name, err)
	}

	return cfg, gormDB, nil
}

// addConfigFlag registers the --config flag shared by every command that
// touches the database.
func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfig, "path to Planyard config file")
}

// addActorFlag registers --as, the username a command acts on behalf of.
func addActorFlag(cmd *cobra.Command, actor *string) {
	cmd.Flags().StringVar(actor, "as", "", "username performing the action (required)")
	cmd.MarkFlagRequired("as")
}

// actorFor loads the acting user named by --as.
func actorFor(gormDB *gorm.DB, username string) (*models.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, perrors.Validation("--as is required")
	}
	u, err := user.GetByUsername(gormDB, username)
	if err != nil {
		return nil, fmt.Errorf("acting user: %w", err)
	}
	return u, nil
}

// userIDFor resolves an optional username flag to a user id. An empty name
// resolves to zero.
func userIDFor(gormDB *gorm.DB, username string) (uint, error) {
	if username == "" {
		return 0, nil
	}
	u, err := user.GetByUsername(gormDB, username)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

func denied(u *models.User, action string) error {
	return perrors.PermissionDenied("%s (%s) may not %s", u.Username, u.Role.Label(), action)
}

// parseDateFlag parses a YYYY-MM-DD flag value.
func parseDateFlag(name, value string) (time.Time, error) {
	t, err := models.ParseDate(value)
	if err != nil {
		return time.Time{}, perrors.Validation("--%s: expected YYYY-MM-DD, got %q", name, value)
	}
	return t, nil
}

// parseAmountFlag parses an optional money flag. An empty value yields nil.
func parseAmountFlag(name, value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, perrors.Validation("--%s: invalid amount %q", name, value)
	}
	return &d, nil
}

// readPassword prompts for a password on the terminal without echo. When
// stdin is not a terminal a single line is read instead.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
