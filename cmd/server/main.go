package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title           CribNosh Verify API
// @version         1.0
// @description     One-time passcode issuance and verification with waitlist signup.

// @contact.name   CribNosh Engineering
// @contact.email  engineering@cribnosh.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	rootCmd := &cobra.Command{
		Use:           "verify-api",
		Short:         "CribNosh OTP verification service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newCleanupCmd(),
		newSeedCmd(),
		newHashPasswordCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
