package cli

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	configfile "github.com/calyx-health/deid/internal/adapters/driven/config/file"
	"github.com/calyx-health/deid/internal/catalog"
	"github.com/calyx-health/deid/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and seed the engine configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file seeded with the built-in clinical categories",
	Long: `Writes the built-in category and matcher declarations to the config file
so institutions can edit them. Refuses to overwrite an existing file.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	store, err := configfile.NewConfigStore(flagConfigDir)
	if err != nil {
		return err
	}
	cfg, err := store.Load()
	if err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}
	cmd.PrintErrf("# %s\n", store.Path())
	cmd.Print(string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	store, err := configfile.NewConfigStore(flagConfigDir)
	if err != nil {
		return err
	}

	if _, err := os.Stat(store.Path()); err == nil {
		return fmt.Errorf("%s already exists, edit it directly or remove it first", store.Path())
	}

	cfg := domain.EngineConfig{Categories: catalog.DefaultCategories(), Encrypt: true}
	cfg.Normalise()
	if err := store.Save(cfg); err != nil {
		return err
	}
	cmd.Printf("wrote %s\n", store.Path())
	return nil
}
