package cmd

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/cobra"

	"github.com/dbjwhs/cql-sub000/internal/backend"
	"github.com/dbjwhs/cql-sub000/internal/config"
	"github.com/dbjwhs/cql-sub000/internal/optimize"
	"github.com/dbjwhs/cql-sub000/internal/security"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local cql setup",
	Long: `Doctor inspects the configuration, template store, provider
catalog, credentials and system resources, and reports anything that
would keep cql from working. API keys are shown masked.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	problems := 0
	check := func(ok bool, format string, a ...any) {
		mark := "ok"
		if !ok {
			mark = "FAIL"
			problems++
		}
		fmt.Printf("[%4s] %s\n", mark, fmt.Sprintf(format, a...))
	}

	// Config file.
	path := config.ConfigPath()
	if configPath != "" {
		path = configPath
	}
	if _, err := os.Stat(path); err == nil {
		check(true, "config file %s", path)
	} else {
		check(true, "config file %s missing, using defaults", path)
	}

	// Template store layout.
	store, err := templateStore()
	if err != nil {
		check(false, "template store: %v", err)
	} else if err := store.Validate(); err != nil {
		check(false, "template store %s: %v", store.BaseDir(), err)
	} else {
		names, _ := store.List()
		check(true, "template store %s (%d templates)", store.BaseDir(), len(names))
	}

	// Provider catalog and credentials.
	registry, err := backend.LoadRegistry(config.ProvidersPath())
	if err != nil {
		check(false, "provider catalog: %v", err)
	} else {
		check(true, "provider catalog (%d models)", len(registry.ListModels()))
		reportCredentials(check)

		modelName := cfg.Optimizer.Model
		if modelName == "" {
			modelName = registry.DefaultModel().Name
		}
		llm, model, err := registry.Build(modelName)
		if err != nil {
			check(false, "model %s: %v", modelName, err)
		} else {
			check(llm.Configured() || cfg.Optimizer.Mode == "local_only",
				"model %s (%s via %s)", model.Name, model.Code, llm.Name())
		}
	}

	// History database path.
	if cfg.History.Enabled {
		check(true, "run history at %s", cfg.HistoryPath())
	} else {
		check(true, "run history disabled")
	}

	// Memory headroom for the semantic cache.
	reportMemory(check)

	if problems > 0 {
		return fmt.Errorf("%d problem(s) found", problems)
	}
	fmt.Println("All checks passed.")
	return nil
}

func reportCredentials(check func(bool, string, ...any)) {
	vars := []string{
		optimize.APIKeyEnvVar,
		optimize.AnthropicAPIKeyEnvVar,
		optimize.OpenAIAPIKeyEnvVar,
	}
	found := false
	for _, name := range vars {
		key, ok := security.SecureFromEnv(name)
		if !ok {
			continue
		}
		found = true
		if err := security.ValidateAPIKey(key.Value()); err != nil {
			check(false, "%s set but invalid: %v", name, err)
		} else {
			check(true, "%s set (%s)", name, key.Masked())
		}
		key.Zero()
	}
	if !found {
		check(cfg.Optimizer.Mode == "local_only",
			"no API key found; only local_only optimization will work")
	}
}

func reportMemory(check func(bool, string, ...any)) {
	cacheBudget := uint64(cfg.Cache.MaxMemoryMB) * 1024 * 1024

	vm, err := mem.VirtualMemory()
	if err != nil {
		check(true, "system memory: unavailable (%v)", err)
		return
	}
	check(vm.Available > cacheBudget,
		"system memory: %d MB available, cache budget %d MB",
		vm.Available/1024/1024, cfg.Cache.MaxMemoryMB)

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		if info, err := proc.MemoryInfo(); err == nil {
			check(true, "process RSS: %d MB", info.RSS/1024/1024)
		}
	}
}
