// Package cli implements the deid command-line interface. Commands wire
// the core services to their adapters on first use, so metadata commands
// like version and session list never demand an API key.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	configfile "github.com/calyx-health/deid/internal/adapters/driven/config/file"
	"github.com/calyx-health/deid/internal/adapters/driven/enhancer/anthropic"
	"github.com/calyx-health/deid/internal/adapters/driven/enhancer/ollama"
	filestore "github.com/calyx-health/deid/internal/adapters/driven/storage/file"
	"github.com/calyx-health/deid/internal/adapters/driven/storage/sqlite"
	"github.com/calyx-health/deid/internal/catalog"
	"github.com/calyx-health/deid/internal/core/domain"
	"github.com/calyx-health/deid/internal/core/ports/driven"
	"github.com/calyx-health/deid/internal/core/ports/driving"
	"github.com/calyx-health/deid/internal/core/services"
	"github.com/calyx-health/deid/internal/logger"
	"github.com/calyx-health/deid/internal/reader"
)

// version is set at build time via -ldflags.
var version = "dev"

// Global flags.
var (
	flagVerbose   bool
	flagConfigDir string
	flagDataDir   string
	flagProvider  string
	flagModel     string
)

// Services used by the commands. Populated by ensureServices; tests
// replace them directly.
var (
	processor  driving.DocumentProcessor
	sessionMgr driving.SessionManager
	engineCfg  domain.EngineConfig
	sqlStore   *sqlite.Store
)

var rootCmd = &cobra.Command{
	Use:   "deid",
	Short: "De-identify clinical documents before external processing",
	Long: `deid removes protected health information from clinical report text,
replacing each value with a stable placeholder, and restores the originals
after the de-identified text has been processed externally.

The placeholder mapping is kept in a per-session reference table that is
encrypted at rest. Original text never leaves the machine.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(flagVerbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default ~/.deid)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.deid/data)")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "anthropic", "enhancement provider (anthropic or ollama)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "override the provider's default model")
}

// Execute runs the root command.
func Execute() error {
	defer func() {
		if sqlStore != nil {
			sqlStore.Close()
		}
	}()
	return rootCmd.Execute()
}

// ensureServices builds the service graph once. withEnhancer selects
// whether an enhancement provider is required; scrub and restore work
// without one.
func ensureServices(withEnhancer bool) error {
	if processor != nil {
		return nil
	}

	cfgStore, err := configfile.NewConfigStore(flagConfigDir)
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}
	engineCfg, err = cfgStore.Load()
	if err != nil {
		return err
	}

	var passphrase []byte
	if engineCfg.Encrypt {
		if passphrase, err = readPassphrase(); err != nil {
			return err
		}
	}

	tables, err := filestore.NewTableStore(tableDir(), passphrase)
	if err != nil {
		return fmt.Errorf("opening table store: %w", err)
	}

	sqlStore, err = sqlite.NewStore(flagDataDir)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	cat, err := catalog.New(engineCfg)
	if err != nil {
		return err
	}
	scrubber := services.NewScrubber(cat, engineCfg.ExcludedTerms)

	var enh driven.Enhancer
	if withEnhancer {
		if enh, err = buildEnhancer(); err != nil {
			return err
		}
	} else {
		enh = noEnhancer{}
	}

	cache := services.NewEnhanceCache(engineCfg.CacheMaxEntries, engineCfg.CacheMaxAge, sqlStore.CacheStore())
	pipeline := services.NewPipeline(enh, cache, engineCfg)

	svc := services.NewSessionService(scrubber, pipeline, tables, sqlStore.SessionStore(), engineCfg.Encrypt)
	processor = svc
	sessionMgr = svc
	return nil
}

// buildEnhancer constructs the configured enhancement provider.
func buildEnhancer() (driven.Enhancer, error) {
	switch flagProvider {
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  flagModel,
		})
	case "ollama":
		return ollama.New(ollama.Config{Model: flagModel}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want anthropic or ollama): %w",
			flagProvider, domain.ErrConfiguration)
	}
}

// readPassphrase takes the table passphrase from DEID_PASSPHRASE, or
// prompts without echo when attached to a terminal.
func readPassphrase() ([]byte, error) {
	if pass := os.Getenv("DEID_PASSPHRASE"); pass != "" {
		return []byte(pass), nil
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return nil, errors.New("encryption enabled but DEID_PASSPHRASE is not set and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Reference table passphrase: ")
	pass, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	if len(pass) == 0 {
		return nil, errors.New("empty passphrase")
	}
	return pass, nil
}

func tableDir() string {
	if flagDataDir == "" {
		return ""
	}
	return flagDataDir + "/tables"
}

// noEnhancer backs commands that never reach the enhancement pipeline.
type noEnhancer struct{}

func (noEnhancer) Enhance(_ context.Context, _ driven.EnhanceRequest) (string, error) {
	return "", errors.New("no enhancement provider configured")
}
func (noEnhancer) ModelName() string            { return "none" }
func (noEnhancer) Ping(_ context.Context) error { return nil }
func (noEnhancer) Close() error                 { return nil }

// readInput loads document text from a file argument, or stdin for "-".
func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	return reader.ReadFile(path)
}

// writeOutput writes result text to a file, or stdout when path is empty.
func writeOutput(cmd *cobra.Command, path, text string) error {
	if path == "" {
		cmd.Print(text)
		if !strings.HasSuffix(text, "\n") {
			cmd.Println()
		}
		return nil
	}
	if err := os.WriteFile(path, []byte(text), 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
