package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratusctl/stratus/internal/aws"
	"github.com/stratusctl/stratus/internal/config"
	"github.com/stratusctl/stratus/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show effective settings and authentication status",
	Long: `Display the effective AWS profile and region and verify that the
credentials work by calling STS.

Examples:
  stratus status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("Current Status")
	fmt.Println(ui.MutedStyle.Render("─────────────────────────────────"))
	fmt.Println()

	if profile != "" {
		fmt.Printf("Profile:  %s\n", ui.NameStyle.Render(profile))
	} else {
		fmt.Println("Profile:  " + ui.MutedStyle.Render("(default credential chain)"))
	}
	if region != "" {
		fmt.Printf("Region:   %s\n", region)
	} else {
		fmt.Println("Region:   " + ui.MutedStyle.Render("(from AWS config)"))
	}
	fmt.Printf("Config:   %s\n", ui.MutedStyle.Render(config.GetConfigPath()))
	fmt.Println()

	fmt.Print("Auth:     ")
	identity, err := fetchIdentity(cmd)
	if err != nil {
		fmt.Println(ui.BadStyle.Render("✗ Not authenticated"))
		fmt.Printf("          %s\n", ui.MutedStyle.Render(err.Error()))
		fmt.Println()
		fmt.Println("To authenticate:")
		if profile != "" {
			fmt.Printf("  aws sso login --profile %s\n", profile)
		} else {
			fmt.Println("  aws configure")
		}
		return nil
	}

	fmt.Println(ui.OKStyle.Render("✓ Authenticated"))
	fmt.Printf("Account:  %s\n", identity.Account)
	fmt.Printf("User:     %s\n", identity.UserID)
	if identity.Arn != "" {
		fmt.Printf("ARN:      %s\n", ui.MutedStyle.Render(identity.Arn))
	}
	return nil
}

func fetchIdentity(cmd *cobra.Command) (*aws.CallerIdentity, error) {
	ctx := cmd.Context()
	client, err := newAWSClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.GetCallerIdentity(ctx)
}
