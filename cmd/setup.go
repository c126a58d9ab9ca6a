package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"snowpilot/internal/config"
	"snowpilot/internal/security"
	"snowpilot/pkg/models"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initial configuration setup",
	Run:   runSetup,
}

func runSetup(cmd *cobra.Command, args []string) {
	fmt.Println("🚀 Setting up SnowPilot...")
	fmt.Println()

	// Check if config already exists
	if config.Exists() {
		var overwrite bool
		prompt := &survey.Confirm{
			Message: "Configuration already exists. Do you want to overwrite it?",
			Default: false,
		}
		survey.AskOne(prompt, &overwrite)
		if !overwrite {
			fmt.Println("Setup cancelled.")
			return
		}
	}

	cfg := &models.Config{}

	fmt.Println("📄 Warehouse Connection")
	fmt.Println("-----------------------")

	warehouseQs := []*survey.Question{
		{
			Name: "account",
			Prompt: &survey.Input{
				Message: "Snowflake Account (e.g., xy12345.us-east-1):",
			},
			Validate: survey.Required,
		},
		{
			Name: "username",
			Prompt: &survey.Input{
				Message: "Username:",
			},
			Validate: survey.Required,
		},
		{
			Name: "password",
			Prompt: &survey.Password{
				Message: "Password:",
			},
			Validate: survey.Required,
		},
		{
			Name: "role",
			Prompt: &survey.Input{
				Message: "Role:",
				Default: "ACCOUNTADMIN",
			},
			Validate: survey.Required,
		},
		{
			Name: "warehouse",
			Prompt: &survey.Input{
				Message: "Warehouse for SnowPilot's own queries:",
				Default: "COMPUTE_WH",
			},
			Validate: survey.Required,
		},
	}

	err := survey.Ask(warehouseQs, &cfg.Warehouse)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Warehouse.Driver = "snowflake"

	fmt.Println()
	fmt.Println("🔁 Control Loop")
	fmt.Println("---------------")

	dryRun := true
	survey.AskOne(&survey.Confirm{
		Message: "Start in dry-run mode (log actions instead of executing)?",
		Default: true,
	}, &dryRun)
	cfg.Loop.DryRun = dryRun

	var autoDownsize bool
	survey.AskOne(&survey.Confirm{
		Message: "Allow downsize and suspend actions to run unattended?",
		Default: false,
	}, &autoDownsize)
	if autoDownsize {
		cfg.Loop.AutoApprove = []string{models.CategoryUnderutilized, models.CategoryIdle}
	}

	var enablePipelines bool
	survey.AskOne(&survey.Confirm{
		Message: "Enable the dynamic table pipeline factory?",
		Default: false,
	}, &enablePipelines)
	cfg.Pipeline.Enabled = enablePipelines

	// Offer the OS keychain so the password stays out of the config file
	var useKeychain bool
	survey.AskOne(&survey.Confirm{
		Message: "Store the password in the system keychain instead of the config file?",
		Default: true,
	}, &useKeychain)

	if useKeychain {
		if err := storePasswordInKeychain(cfg); err != nil {
			fmt.Printf("Keychain unavailable (%v), keeping the password in the config file.\n", err)
		} else {
			cfg.Warehouse.Password = ""
		}
	}

	if err := config.Save(cfg); err != nil {
		fmt.Printf("Error saving configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("✅ Configuration saved to:", config.GetConfigFile())
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  snowpilot ingest     # pull warehouse telemetry")
	fmt.Println("  snowpilot status     # check what the loop knows")
	fmt.Println("  snowpilot run        # start the loop")
}

func storePasswordInKeychain(cfg *models.Config) error {
	cm, err := security.NewCredentialManager()
	if err != nil {
		return err
	}
	key := security.CredentialKey(cfg.Warehouse.Driver, cfg.Warehouse.Account, cfg.Warehouse.Username)
	return cm.StoreCredential(key, "password", cfg.Warehouse.Password, map[string]string{
		"account":  cfg.Warehouse.Account,
		"username": cfg.Warehouse.Username,
	})
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
