package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/crypto"
)

var tenantSecretCmd = &cobra.Command{
	Use:   "tenant-secret [value]",
	Short: "Encrypt a tenant secret for manual seeding",
	Long: `Prints the value encrypted with APP_SECRET_KEY, in the format stored in the
tenants table. Reads stdin when no argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTenantSecret,
}

func init() {
	rootCmd.AddCommand(tenantSecretCmd)
}

func runTenantSecret(cmd *cobra.Command, args []string) error {
	var value string
	if len(args) == 1 {
		value = args[0]
	} else {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		value = strings.TrimSpace(string(raw))
	}
	if value == "" {
		return errors.New("secret value is empty")
	}

	encrypted, err := crypto.Encrypt(value)
	if err != nil {
		return err
	}
	if encrypted == value {
		return errors.New("APP_SECRET_KEY is not set, refusing to print a plain secret")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), encrypted)
	return err
}
