package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbjwhs/cql-sub000/internal/backend"
	"github.com/dbjwhs/cql-sub000/internal/config"
	"github.com/dbjwhs/cql-sub000/internal/logger"
	"github.com/dbjwhs/cql-sub000/internal/optimize"
	"github.com/dbjwhs/cql-sub000/internal/template"
)

var (
	logLevel   string
	configPath string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cql",
	Short: "Compile CQL queries into structured LLM prompts",
	Long: `cql compiles directive-based query files into structured prompts
for large language models.

Common commands:
  cql compile FILE      Compile a query file to a prompt
  cql optimize FILE     Compile and optimize a query
  cql templates list    Manage stored query templates
  cql mcp               Serve compilation over MCP on stdio`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)

		// Credentials may live in a .env next to the config or in
		// the working directory. Existing variables win.
		config.LoadEnvFile(filepath.Join(config.ConfigDir(), ".env"))
		config.LoadEnvFile(".env")

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info",
		"Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (default ~/.cql/config.yaml)")
}

// templateStore opens the template store from config, falling back to
// the default directory.
func templateStore() (*template.Store, error) {
	dir := cfg.Templates.Dir
	if dir == "" {
		dir = template.DefaultDir()
	}
	return template.NewStore(dir)
}

// optimizerFlags maps the config file onto optimization flags.
func optimizerFlags() (optimize.Flags, error) {
	flags := optimize.DefaultFlags()

	mode, err := optimize.ParseMode(cfg.Optimizer.Mode)
	if err != nil {
		return flags, err
	}
	goal, err := optimize.ParseGoal(cfg.Optimizer.Goal)
	if err != nil {
		return flags, err
	}
	flags.Mode = mode
	flags.Goal = goal
	flags.Domain = cfg.Optimizer.Domain
	flags.Temperature = cfg.Optimizer.Temperature
	flags.ValidateSemantics = cfg.Optimizer.ValidateSemantics
	flags.EnableCaching = cfg.Cache.Enabled
	return flags, nil
}

// newOptimizer wires the optimizer from config: provider catalog,
// backend for the configured model, cache tuning and budgets.
func newOptimizer() (*optimize.Compiler, *backend.ModelConfig, error) {
	registry, err := backend.LoadRegistry(config.ProvidersPath())
	if err != nil {
		return nil, nil, err
	}

	// A pinned model builds its backend directly; otherwise requests
	// follow the router so a failing model fails over automatically.
	var llm optimize.Backend
	var model *backend.ModelConfig
	if cfg.Optimizer.Model != "" {
		llm, model, err = registry.Build(cfg.Optimizer.Model)
		if err != nil {
			return nil, nil, err
		}
	} else {
		model = registry.DefaultModel()
		if model == nil {
			return nil, nil, fmt.Errorf("provider catalog has no models")
		}
		llm = backend.NewRouted(registry, backend.DefaultCooldown)
	}

	optCfg := optimize.DefaultCompilerConfig()
	optCfg.Model = model.Code
	optCfg.Cost.DailyBudget = cfg.Optimizer.DailyBudget
	optCfg.Cost.MonthlyBudget = cfg.Optimizer.MonthlyBudget
	applyCacheConfig(&optCfg.Cache)

	return optimize.NewCompiler(llm, optCfg), model, nil
}

func applyCacheConfig(cacheCfg *optimize.CacheConfig) {
	if cfg.Cache.MaxEntries > 0 {
		cacheCfg.MaxEntries = cfg.Cache.MaxEntries
	}
	if cfg.Cache.MaxMemoryMB > 0 {
		cacheCfg.MaxMemoryMB = cfg.Cache.MaxMemoryMB
	}
	if cfg.Cache.TTLHours > 0 {
		cacheCfg.TTL = time.Duration(cfg.Cache.TTLHours) * time.Hour
	}
	if policy, err := optimize.ParseEvictionPolicy(cfg.Cache.EvictionPolicy); err == nil {
		cacheCfg.Policy = policy
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
