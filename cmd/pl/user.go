package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/user"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		opts       user.CreateOpts
		role       string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Long:  "Creates a user. The password is prompted for when --password is omitted. Only administrators may create users.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Role = models.Role(role)
			return runUserCreate(cmd, configPath, actor, opts)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	cmd.Flags().StringVar(&opts.Username, "username", "", "login name (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", string(models.RoleTeamMember), "role (admin, project_manager, team_member)")
	cmd.Flags().StringVar(&opts.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&opts.LastName, "last-name", "", "last name")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("email")
	return cmd
}

func runUserCreate(cmd *cobra.Command, configPath, actor string, opts user.CreateOpts) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	me, err := actorFor(gormDB, actor)
	if err != nil {
		return err
	}
	if !user.CanManageUsers(me) {
		return denied(me, "create users")
	}

	if opts.Password == "" {
		opts.Password, err = readPassword(cmd, fmt.Sprintf("Password for %s: ", opts.Username))
		if err != nil {
			return err
		}
	}

	u, err := user.Create(gormDB, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d, %s)\n", u.Username, u.ID, u.Role.Label())
	return nil
}

func newUserListCmd() *cobra.Command {
	var (
		configPath string
		role       string
		resources  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(cmd, configPath, user.ListFilters{
				Role:          models.Role(role),
				ExcludeAdmins: resources,
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&role, "role", "", "filter by role")
	cmd.Flags().BoolVar(&resources, "resources", false, "only users assignable to tasks")
	return cmd
}

func runUserList(cmd *cobra.Command, configPath string, filters user.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	users, err := user.List(gormDB, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tEMAIL\tROLE")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.FullName(), u.Email, u.Role.Label())
	}
	w.Flush()
	return nil
}
