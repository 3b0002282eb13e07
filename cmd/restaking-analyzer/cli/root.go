package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	defaultConfigFileName = "config.yml"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:   "restaking-analyzer",
		Short: "Concentration and crisis analytics over restaking markets",
	}
)

func Setup() error {
	homePath, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	defaultConfigPath := getDefaultConfigFile(homePath, defaultConfigFileName)

	rootCmd.AddCommand(OperatorConcentrationCmd())
	rootCmd.AddCommand(AVSConcentrationCmd())
	rootCmd.AddCommand(AVSChartCmd())
	rootCmd.AddCommand(DepegCmd())
	rootCmd.AddCommand(DexVolumeCmd())
	rootCmd.AddCommand(MorphoLiquidationsCmd())
	rootCmd.AddCommand(WatchCmd())
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath, fmt.Sprintf("config file (default %s)", defaultConfigPath))
	if err := rootCmd.Execute(); err != nil {
		return err
	}

	return nil
}

func getDefaultConfigFile(homePath, filename string) string {
	return filepath.Join(homePath, filename)
}

func GetConfigPath() string {
	return cfgPath
}
