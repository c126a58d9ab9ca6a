package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"snowpilot/internal/config"
	"snowpilot/internal/ui"
)

var encryptConfigCmd = &cobra.Command{
	Use:   "encrypt-config",
	Short: "Encrypt passwords in the configuration file",
	Long: `Encrypt plaintext passwords in the configuration file using AES-256-GCM.

This command will:
- Read your current configuration file
- Encrypt any plaintext passwords found
- Save the configuration with encrypted passwords
- Create a backup of the original file

The encryption key is derived from:
1. SNOWPILOT_ENCRYPTION_KEY environment variable (if set)
2. Machine-specific identifier (hostname + home directory)

To use an environment variable for the password instead of encryption:
  export SNOWPILOT_PASSWORD="your-password"`,
	RunE: runEncryptConfig,
}

var configBackup bool

func init() {
	rootCmd.AddCommand(encryptConfigCmd)

	encryptConfigCmd.Flags().BoolVar(&configBackup, "backup", true, "Create backup of original config")
}

func runEncryptConfig(cmd *cobra.Command, args []string) error {
	u := ui.NewUI(verbose, quiet)

	configFile := config.GetConfigFile()
	u.Info(fmt.Sprintf("Reading configuration from: %s", configFile))

	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if config.IsEncrypted(cfg.Warehouse.Password) {
		u.Info("Passwords are already encrypted")
		return nil
	}

	if configBackup {
		backupFile := configFile + ".backup"
		if err := os.WriteFile(backupFile, data, 0o600); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		u.Success(fmt.Sprintf("Created backup: %s", backupFile))
	} else {
		u.Warning("No backup requested, the config file will be overwritten in place")
		ok, err := ui.Confirm("Continue without a backup?", false)
		if err != nil {
			return err
		}
		if !ok {
			u.Info("Encryption cancelled")
			return nil
		}
	}

	u.StartProgress("Encrypting passwords...")
	if err := config.EncryptConfigPasswords(cfg); err != nil {
		u.StopProgress()
		u.Error("Encryption failed, the config file was left unchanged")
		return err
	}
	u.StopProgress()

	configData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, configData, 0o600); err != nil {
		return fmt.Errorf("failed to save encrypted config: %w", err)
	}
	u.VerbosePrintf("Wrote %d bytes to %s\n", len(configData), configFile)

	u.Success("Configuration passwords encrypted successfully")
	u.Println()
	u.Info("To decrypt passwords at runtime, SnowPilot will use:")
	u.Printf("  1. SNOWPILOT_ENCRYPTION_KEY environment variable (if set)\n")
	u.Printf("  2. Machine-specific key (hostname + home directory)\n")
	u.Println()
	u.Info("Alternatively, use the SNOWPILOT_PASSWORD environment variable to override")

	return nil
}
