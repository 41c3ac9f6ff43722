package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"wordpress-sync/internal/config"
	"wordpress-sync/internal/wp"
)

func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage saved instance credentials",
	}
	cmd.AddCommand(newProfilesListCmd(), newProfilesAddCmd(), newProfilesRemoveCmd())
	return cmd
}

func openProfiles() (*config.Profiles, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return nil, err
	}
	return config.LoadProfiles(path)
}

func newProfilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := openProfiles()
			if err != nil {
				return err
			}
			names := profiles.Names()
			if len(names) == 0 {
				fmt.Println("no profiles saved")
				return nil
			}
			for _, n := range names {
				c, _ := profiles.Get(n)
				fmt.Printf("%-20s %s (%s)\n", n, c.Origin(), c.User)
			}
			return nil
		},
	}
}

func newProfilesAddCmd() *cobra.Command {
	var url, user, pass string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Save a profile; missing fields are prompted for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := openProfiles()
			if err != nil {
				return err
			}
			in := bufio.NewReader(cmd.InOrStdin())
			if url == "" {
				if url, err = prompt(in, "instance URL: "); err != nil {
					return err
				}
			}
			if user == "" {
				if user, err = prompt(in, "user: "); err != nil {
					return err
				}
			}
			if pass == "" {
				if pass, err = prompt(in, "application password: "); err != nil {
					return err
				}
			}
			creds := wp.Credentials{URL: url, User: user, Password: pass}
			if err := profiles.Set(args[0], creds); err != nil {
				return err
			}
			if err := profiles.Save(); err != nil {
				return err
			}
			fmt.Printf("saved profile %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "instance URL")
	cmd.Flags().StringVar(&user, "user", "", "basic-auth user")
	cmd.Flags().StringVar(&pass, "pass", "", "basic-auth application password")
	return cmd
}

func newProfilesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a saved profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := openProfiles()
			if err != nil {
				return err
			}
			if err := profiles.Remove(args[0]); err != nil {
				if hints := profiles.Suggest(args[0]); len(hints) > 0 {
					return fmt.Errorf("%w (did you mean %s?)", err, strings.Join(hints, ", "))
				}
				return err
			}
			if err := profiles.Save(); err != nil {
				return err
			}
			fmt.Printf("removed profile %q\n", args[0])
			return nil
		},
	}
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := in.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
