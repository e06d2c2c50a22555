package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/gitcord/internal/manage"
	"github.com/user/gitcord/internal/storage"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Link and unlink repositories",
}

var repoAddCmd = &cobra.Command{
	Use:   "add <repository-url>",
	Short: "Link a repository to a server, or update an existing link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetString("channel")
		secret, _ := cmd.Flags().GetString("secret")
		return withService(func(svc *manage.Service) error {
			repo, err := svc.SetupRepository(cmd.Context(), flagServer, args[0], channel, secret)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "linked %s\n", repo.URL)
			return nil
		})
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:   "remove <repository-url>",
	Short: "Unlink a repository and drop its routing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *manage.Service) error {
			if err := svc.RemoveRepository(cmd.Context(), flagServer, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		})
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the repositories linked to a server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(func(svc *manage.Service) error {
			repos, err := svc.ListRepositories(cmd.Context(), flagServer)
			if err != nil {
				return err
			}
			return writeRepositories(cmd.OutOrStdout(), repos)
		})
	},
}

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Route pushes by branch pattern",
}

var branchAddCmd = &cobra.Command{
	Use:   "add <repository-url> <pattern>",
	Short: "Track branches matching pattern (exact, prefix/*, * or !exclusion)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetString("channel")
		return withService(func(svc *manage.Service) error {
			if err := svc.TrackBranch(cmd.Context(), flagServer, args[0], args[1], channel); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tracking %s on %s\n", args[1], args[0])
			return nil
		})
	},
}

var branchRemoveCmd = &cobra.Command{
	Use:   "remove <repository-url> <pattern>",
	Short: "Stop tracking a branch pattern",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetString("channel")
		return withService(func(svc *manage.Service) error {
			if err := svc.UntrackBranch(cmd.Context(), flagServer, args[0], args[1], channel); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "untracked %s on %s\n", args[1], args[0])
			return nil
		})
	},
}

var branchListCmd = &cobra.Command{
	Use:   "list <repository-url>",
	Short: "List tracked branch patterns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *manage.Service) error {
			branches, err := svc.ListBranches(cmd.Context(), flagServer, args[0])
			if err != nil {
				return err
			}
			return writeBranches(cmd.OutOrStdout(), branches)
		})
	},
}

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Route event types and filter their actions",
}

var eventSetCmd = &cobra.Command{
	Use:   "set <repository-url> <event-type>",
	Short: "Set the channel and action filter of an event type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetString("channel")
		enable, _ := cmd.Flags().GetStringSlice("enable")
		disable, _ := cmd.Flags().GetStringSlice("disable")
		actions, err := parseActions(enable, disable)
		if err != nil {
			return err
		}
		return withService(func(svc *manage.Service) error {
			if err := svc.SetEventChannel(cmd.Context(), flagServer, args[0], args[1], channel, actions); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "updated %s routing on %s\n", args[1], args[0])
			return nil
		})
	},
}

var eventClearCmd = &cobra.Command{
	Use:   "clear <repository-url> <event-type>",
	Short: "Reset an event type to the default routing",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *manage.Service) error {
			if err := svc.ClearEventChannel(cmd.Context(), flagServer, args[0], args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared %s routing on %s\n", args[1], args[0])
			return nil
		})
	},
}

var eventListCmd = &cobra.Command{
	Use:   "list <repository-url>",
	Short: "List event routing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *manage.Service) error {
			routes, err := svc.ListEventChannels(cmd.Context(), flagServer, args[0])
			if err != nil {
				return err
			}
			return writeEventRoutes(cmd.OutOrStdout(), routes)
		})
	},
}

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Inspect known servers",
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known servers and their status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(func(svc *manage.Service) error {
			servers, err := svc.ListServers(cmd.Context())
			if err != nil {
				return err
			}
			return writeServers(cmd.OutOrStdout(), servers)
		})
	},
}

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Show the number of messages sent per server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(func(svc *manage.Service) error {
			counts, err := svc.MessageCounts(cmd.Context())
			if err != nil {
				return err
			}
			return writeCounts(cmd.OutOrStdout(), counts)
		})
	},
}

func init() {
	addServerFlag(repoCmd)
	addServerFlag(branchCmd)
	addServerFlag(eventCmd)

	repoAddCmd.Flags().String("channel", "", "default channel for the repository")
	repoAddCmd.Flags().String("secret", "", "webhook secret for the repository")
	branchAddCmd.Flags().String("channel", "", "channel for matching pushes (defaults to the repository channel)")
	branchRemoveCmd.Flags().String("channel", "", "channel of the tracked pattern")
	eventSetCmd.Flags().String("channel", "", "channel for the event type (defaults to the repository channel)")
	eventSetCmd.Flags().StringSlice("enable", nil, "actions to enable (comma-separated)")
	eventSetCmd.Flags().StringSlice("disable", nil, "actions to disable (comma-separated)")

	repoCmd.AddCommand(repoAddCmd, repoRemoveCmd, repoListCmd)
	branchCmd.AddCommand(branchAddCmd, branchRemoveCmd, branchListCmd)
	eventCmd.AddCommand(eventSetCmd, eventClearCmd, eventListCmd)
	serversCmd.AddCommand(serversListCmd, countsCmd)
	rootCmd.AddCommand(repoCmd, branchCmd, eventCmd, serversCmd)
}

// parseActions builds an action filter overlay. An action may not be both
// enabled and disabled.
func parseActions(enable, disable []string) (map[string]bool, error) {
	actions := make(map[string]bool, len(enable)+len(disable))
	for _, a := range enable {
		if a = strings.TrimSpace(a); a != "" {
			actions[a] = true
		}
	}
	for _, a := range disable {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if actions[a] {
			return nil, fmt.Errorf("action %q is both enabled and disabled", a)
		}
		actions[a] = false
	}
	return actions, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func writeRepositories(out io.Writer, repos []storage.Repository) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "REPOSITORY\tCHANNEL\tSECRET")
	for _, r := range repos {
		secret := "global"
		if r.WebhookSecret != "" {
			secret = "own"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.URL, orDash(r.ChannelID), secret)
	}
	return w.Flush()
}

func writeBranches(out io.Writer, branches []manage.BranchInfo) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PATTERN\tCHANNEL\tMATCHES")
	for _, b := range branches {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", b.Pattern, orDash(b.ChannelID), b.Description)
	}
	return w.Flush()
}

func writeEventRoutes(out io.Writer, routes []manage.EventRoute) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "EVENT\tCHANNEL\tEXPLICIT\tACTIONS")
	for _, r := range routes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", r.EventType, orDash(r.ChannelID), r.Explicit, orDash(strings.Join(r.Enabled, ",")))
	}
	return w.Flush()
}

func writeServers(out io.Writer, servers []storage.Server) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SERVER\tNAME\tSTATUS\tMESSAGES")
	for _, s := range servers {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.GuildID, orDash(s.Name), s.Status, s.MessagesSent)
	}
	return w.Flush()
}

func writeCounts(out io.Writer, counts []storage.MessageCount) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SERVER\tMESSAGES")
	for _, c := range counts {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", c.GuildID, c.MessagesSent)
	}
	return w.Flush()
}
