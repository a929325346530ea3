package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"evalgo.org/playground/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runShowConfig,
}

var initConfigCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	RunE:  runInitConfig,
}

var (
	initConfigPath  string
	initConfigForce bool
)

func init() {
	initConfigCmd.Flags().StringVarP(&initConfigPath, "output", "o", "config.yaml", "file to write")
	initConfigCmd.Flags().BoolVar(&initConfigForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(initConfigCmd)
}

func runShowConfig(cmd *cobra.Command, args []string) error {
	shown := *cfg
	if shown.Security.JWTSecret != "" {
		shown.Security.JWTSecret = "********"
	}

	data, err := yaml.Marshal(&shown)
	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(initConfigPath); err == nil && !initConfigForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", initConfigPath)
	}

	data, err := yaml.Marshal(config.Defaults())
	if err != nil {
		return err
	}
	content := append([]byte("# Envoy playground configuration\n\n"), data...)

	if err := os.WriteFile(initConfigPath, content, 0o600); err != nil {
		return err
	}

	fmt.Printf("✓ Created %s\n", initConfigPath)
	return nil
}
