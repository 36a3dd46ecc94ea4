package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melosso/portway/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample Portway configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/portway/config.yaml.
Use --config to specify a custom path.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error
	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to add your environments and descriptor root")
	fmt.Println("  2. Run 'portwayctl management bootstrap' to set the admin passphrase")
	fmt.Println("  3. Start the server with: portway serve")
	fmt.Printf("  Or specify a custom config: portway serve --config %s\n", configPath)
	return nil
}
