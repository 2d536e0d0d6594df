package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratusctl/stratus/internal/aws"
	"github.com/stratusctl/stratus/internal/config"
	"github.com/stratusctl/stratus/internal/ui"
)

var useCmd = &cobra.Command{
	Use:   "use [profile]",
	Short: "Set the default AWS profile",
	Long: `Persist a default AWS profile for future commands.

Without an argument an interactive selector is shown. The choice is saved
to ~/.stratus/config.yaml and can always be overridden per invocation
with --profile.

Examples:
  stratus use                 # Interactive profile selector
  stratus use production      # Set a specific profile
  stratus use ls              # List available profiles`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUse,
}

var useLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List available AWS profiles",
	Long: `List the profiles found in ~/.aws/credentials and ~/.aws/config.

Examples:
  stratus use ls`,
	RunE: runUseList,
}

func init() {
	rootCmd.AddCommand(useCmd)
	useCmd.AddCommand(useLsCmd)
}

func runUse(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return setProfile(args[0])
	}

	profiles, err := aws.ListProfiles()
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}
	if len(profiles) == 0 {
		fmt.Println("No AWS profiles found")
		fmt.Println("Create profiles in ~/.aws/credentials or ~/.aws/config")
		return nil
	}

	selected, err := ui.SelectProfile(profiles, profile)
	if err != nil {
		return err
	}
	return setProfile(selected.Name)
}

func runUseList(cmd *cobra.Command, args []string) error {
	profiles, err := aws.ListProfiles()
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}
	if len(profiles) == 0 {
		fmt.Println("No AWS profiles found")
		fmt.Println("Create profiles in ~/.aws/credentials or ~/.aws/config")
		return nil
	}

	ui.PrintProfileTable(profiles, profile)
	return nil
}

func setProfile(name string) error {
	if !aws.ValidateProfile(name) {
		return fmt.Errorf("profile %q not found", name)
	}
	if err := config.SetProfile(name); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	fmt.Printf("Profile set to: %s\n", name)
	fmt.Printf("Saved to: %s\n\n", config.GetConfigPath())
	fmt.Println("To use this profile in your current shell, run:")
	fmt.Printf("  export AWS_PROFILE=%s\n", name)
	return nil
}
