/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diagnoclinic/apiserver/config"
	"github.com/diagnoclinic/apiserver/internal/services"
	"github.com/diagnoclinic/apiserver/internal/store"
)

// hashPasswordsCmd rewrites plaintext passwords of the doctors file.
var hashPasswordsCmd = &cobra.Command{
	Use:   "hash-passwords",
	Short: "Hash plaintext passwords in the doctors file",
	Long: `Rewrites every password of the doctors file that is not already a
recognized hash (bcrypt, or werkzeug pbkdf2/scrypt) as a bcrypt hash.
The previous file is kept next to it with a .bak suffix.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			path = cfg.Data.DoctorsFile
		}

		doctors, err := store.OpenDoctorRepository(path, cfg.Accounts.OrdinalBase)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		changed, err := services.HashPlaintextPasswords(cmd.Context(), doctors)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(changed) == 0 {
			fmt.Fprintln(out, "no plaintext passwords found")
			return nil
		}
		for _, username := range changed {
			fmt.Fprintf(out, "hashed password for %s\n", username)
		}
		fmt.Fprintf(out, "%d password(s) updated in %s\n", len(changed), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordsCmd)
	hashPasswordsCmd.Flags().String("file", "", "doctors file (defaults to DOCTORS_FILE)")
}
