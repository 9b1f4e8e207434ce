package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/studhelper/studhelper/internal/app"
	"github.com/studhelper/studhelper/internal/database"
	"github.com/studhelper/studhelper/internal/services"
	"github.com/studhelper/studhelper/pkg/crypto"
)

const minPasswordLength = 8

// newRootCmd builds the operator CLI. Every subcommand reads the same configuration as the server.
func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "studhelperctl",
		Short:         "Operator tooling for the student helper service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Directory containing config.yaml")

	load := func() (*app.Config, error) {
		if strings.TrimSpace(configPath) == "" {
			return app.LoadConfig()
		}
		return app.LoadConfig(configPath)
	}

	rootCmd.AddCommand(
		migrateCmd(load),
		teamsCmd(load),
		statsCmd(load),
		countsCmd(load),
		hashPasswordCmd(),
	)
	return rootCmd
}

type configLoader func() (*app.Config, error)

func migrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(load, func(db *gorm.DB, _ *app.Config) error {
				if err := database.AutoMigrate(db); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%d tables)\n", len(database.Models()))
				return nil
			})
		},
	}
}

func teamsCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "List teams with member and report counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDomain(load, func(domain *services.Domain) error {
				teams, err := domain.Dashboard.Teams(commandContext(cmd))
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tPRODUCT\tINVITE\tADMIN\tMEMBERS\tREPORTS")
				for _, team := range teams {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\n",
						team.TeamID, team.TeamName, team.ProductName, team.InviteCode, team.AdminName, team.MemberCount, team.ReportCount)
				}
				return w.Flush()
			})
		},
	}
}

func statsCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <team-id>",
		Short: "Show per-member activity for a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || teamID <= 0 {
				return fmt.Errorf("invalid team id %q", args[0])
			}

			return withDomain(load, func(domain *services.Domain) error {
				team, err := domain.Teams.GetByID(commandContext(cmd), teamID)
				if err != nil {
					return err
				}
				stats, err := domain.Stats.TeamStats(commandContext(cmd), teamID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n", team.TeamName, team.ProductName)
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "STUDENT\tROLE\tREPORTS\tGIVEN\tRECEIVED\tAVG")
				for _, member := range stats {
					name := member.Name
					if member.IsAdmin {
						name += " *"
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.2f\n",
						name, member.Role, member.ReportCount, member.RatingsGiven, member.RatingsReceived, member.AvgReceivedScore)
				}
				return w.Flush()
			})
		},
	}
}

func countsCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Print entity totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDomain(load, func(domain *services.Domain) error {
				counts, err := domain.Dashboard.Counts(commandContext(cmd))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "students=%d teams=%d reports=%d ratings=%d\n",
					counts.Students, counts.Teams, counts.Reports, counts.Ratings)
				return nil
			})
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Produce a bcrypt hash for dashboard.password_hash",
		Long:  "Produce a bcrypt hash for dashboard.password_hash. Without an argument the password is read from the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = line
			}

			if len(password) < minPasswordLength {
				return fmt.Errorf("password must be at least %d characters", minPasswordLength)
			}
			hash, err := crypto.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func readLine(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", errors.New("no password supplied")
	}
	return strings.TrimRight(scanner.Text(), "\r"), nil
}

func withDatabase(load configLoader, fn func(db *gorm.DB, cfg *app.Config) error) (err error) {
	cfg, err := load()
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.Database.ConnectionConfig())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(db); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(db, cfg)
}

func withDomain(load configLoader, fn func(domain *services.Domain) error) error {
	return withDatabase(load, func(db *gorm.DB, cfg *app.Config) error {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		domain, err := services.NewDomain(db, cfg.Features.DomainConfig())
		if err != nil {
			return err
		}
		return fn(domain)
	})
}

// commandContext guards against commands executed without ExecuteContext.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
