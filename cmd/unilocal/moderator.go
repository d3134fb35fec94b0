package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/unilocal/internal/application"
)

// moderatorPasswordEnv supplies the password when --password is omitted.
const moderatorPasswordEnv = "UNILOCAL_MODERATOR_PASSWORD"

func newCreateModeratorCmd(opts *rootOptions) *cobra.Command {
	var params application.RegisterParams

	cmd := &cobra.Command{
		Use:   "create-moderator",
		Short: "Create a moderator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if params.Password == "" {
				params.Password = os.Getenv(moderatorPasswordEnv)
			}

			cfg, logger, storage, err := openStorage(opts)
			if err != nil {
				return err
			}
			defer closeStorage(storage, logger)

			if err := storage.Migrate(cmd.Context()); err != nil {
				return err
			}
			svc, err := newServices(cfg, storage, logger.Logger, time.Now)
			if err != nil {
				return err
			}

			user, err := svc.users.CreateModerator(cmd.Context(), params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created moderator %s <%s>\n", user.ID, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Email, "email", "", "moderator email")
	cmd.Flags().StringVar(&params.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&params.Username, "username", "", "unique username")
	cmd.Flags().StringVar(&params.City, "city", "", "home city")
	cmd.Flags().StringVar(&params.Password, "password", "", "password (or "+moderatorPasswordEnv+")")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
