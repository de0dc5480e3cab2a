package commands

import (
	"crypto/ed25519"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marmos91/idhost/internal/cli/prompt"
	"github.com/marmos91/idhost/internal/config"
	"github.com/marmos91/idhost/internal/cryptoutil"
	"github.com/marmos91/idhost/internal/store"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file and node key pair",
	Long: `Initialize a sample idhostd configuration file and generate this
node's Ed25519 signing key pair if it does not already exist.

By default, the configuration file is created at
$XDG_CONFIG_HOME/idhost/config.yaml. Use --config to specify a custom path.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration file")
	initCmd.Flags().BoolVar(&initInteractive, "interactive", false, "Prompt for database and admin settings instead of writing defaults")
}

// promptSettings fills cfg from interactive prompts, used by
// init --interactive instead of the placeholder defaults.
func promptSettings(cfg *config.Config) error {
	backend, err := prompt.SelectString("Database backend", []string{
		string(store.DatabaseTypeSQLite),
		string(store.DatabaseTypePostgres),
	})
	if err != nil {
		return err
	}
	cfg.Database.Type = store.DatabaseType(backend)

	if cfg.Database.Type == store.DatabaseTypePostgres {
		host, err := prompt.InputRequired("PostgreSQL host")
		if err != nil {
			return err
		}
		port, err := prompt.InputPort("PostgreSQL port", 5432)
		if err != nil {
			return err
		}
		database, err := prompt.InputRequired("Database name")
		if err != nil {
			return err
		}
		user, err := prompt.InputRequired("Database user")
		if err != nil {
			return err
		}
		password, err := prompt.Password("Database password")
		if err != nil {
			return err
		}
		cfg.Database.Postgres.Host = host
		cfg.Database.Postgres.Port = port
		cfg.Database.Postgres.Database = database
		cfg.Database.Postgres.User = user
		cfg.Database.Postgres.Password = password
	}

	secret, err := prompt.PasswordWithConfirmation("Admin API JWT secret", "Confirm secret", 32)
	if err != nil {
		return err
	}
	cfg.Admin.JWT.Secret = secret
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if !initForce && config.DefaultConfigExists() && GetConfigFile() == "" {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
	}

	cfg := config.GetDefaultConfig()

	if initInteractive {
		if err := promptSettings(cfg); err != nil {
			if prompt.IsAborted(err) {
				return fmt.Errorf("init aborted")
			}
			return err
		}
	}

	keyDir := filepath.Dir(configPath)
	cfg.Identity.PublicKeyPath = filepath.Join(keyDir, "node.pub")
	cfg.Identity.PrivateKeyPath = filepath.Join(keyDir, "node.key")

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	if !cryptoutil.KeyFilesExist(cfg.Identity.PublicKeyPath, cfg.Identity.PrivateKeyPath) {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return fmt.Errorf("failed to generate node key pair: %w", err)
		}
		if err := cryptoutil.WriteKeyPair(cfg.Identity.PublicKeyPath, cfg.Identity.PrivateKeyPath, pub, priv); err != nil {
			return fmt.Errorf("failed to write node key pair: %w", err)
		}
		fmt.Printf("Node key pair generated at: %s, %s\n", cfg.Identity.PublicKeyPath, cfg.Identity.PrivateKeyPath)
	} else {
		fmt.Println("Node key pair already present, leaving it untouched")
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Run migrations: idhostd migrate")
	fmt.Println("  3. Start the node: idhostd start")
	if !initInteractive {
		fmt.Println("\nSecurity note:")
		fmt.Println("  The admin.jwt.secret in the generated file is a placeholder.")
		fmt.Println("  Replace it with a real secret before exposing the admin API:")
		fmt.Println("    export IDHOST_ADMIN_JWT_SECRET=$(openssl rand -hex 32)")
	}

	return nil
}
