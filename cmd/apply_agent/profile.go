package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/easy-apply-agent/internal/config"
	"github.com/jonathan/easy-apply-agent/internal/db"
)

var (
	importCaller   string
	importFile     string
	importIdentity string
	importDBURL    string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage stored candidate profiles",
}

var profileImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Store a candidate profile and sealed platform login for a caller",
	Long: `Validates a candidate profile JSON file and stores it with the caller's platform
login. The password is read from LINKEDIN_PASSWORD and sealed with CREDENTIALS_KEY.`,
	RunE: runProfileImport,
}

var profileKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a new CREDENTIALS_KEY value",
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := config.GenerateKey()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
		return err
	},
}

func init() {
	f := profileImportCmd.Flags()
	f.StringVar(&importCaller, "caller", "", "Caller identity (required)")
	f.StringVarP(&importFile, "file", "f", "", "Candidate profile JSON (required)")
	f.StringVar(&importIdentity, "identity", "", "Platform login email (defaults to the profile email)")
	f.StringVar(&importDBURL, "db-url", "", "PostgreSQL URL (defaults to DATABASE_URL)")

	profileCmd.AddCommand(profileImportCmd, profileKeygenCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileImport(cmd *cobra.Command, _ []string) error {
	if importCaller == "" || importFile == "" {
		return errors.New("--caller and --file are required")
	}
	profile, err := config.LoadProfile(importFile)
	if err != nil {
		return err
	}
	identity := importIdentity
	if identity == "" {
		identity = profile.Email
	}
	secret := os.Getenv(secretEnv)
	if secret == "" {
		return fmt.Errorf("%s environment variable is required", secretEnv)
	}
	dbURL := importDBURL
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	sealer, err := config.NewSealerFromEnv()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	database, err := db.Connect(ctx, dbURL)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		return err
	}

	if err := database.SaveProfile(ctx, importCaller, profile, identity, secret, sealer); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Stored profile for %s (login %s)\n", importCaller, identity)
	return err
}
