package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbjwhs/cql-sub000/internal/logger"
	"github.com/dbjwhs/cql-sub000/internal/query"
	"github.com/dbjwhs/cql-sub000/internal/security"
)

var (
	compileOutput       string
	compileJSON         bool
	warningsAsErrors    bool
	compileTemplateName string
	compileSetVars      []string
)

var compileCmd = &cobra.Command{
	Use:   "compile [FILE]",
	Short: "Compile a CQL query file into a prompt",
	Long: `Compile reads CQL directive text and emits the compiled prompt.

The query is read from FILE, from standard input when FILE is "-" or
omitted, or from a stored template via --template. Validation warnings
go to standard error; errors stop compilation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "",
		"Write the compiled prompt to a file instead of stdout")
	compileCmd.Flags().BoolVar(&compileJSON, "json", false,
		"Emit the structured JSON form regardless of any @format directive")
	compileCmd.Flags().BoolVar(&warningsAsErrors, "warnings-as-errors", false,
		"Treat validation warnings as errors")
	compileCmd.Flags().StringVarP(&compileTemplateName, "template", "t", "",
		"Compile a stored template instead of a file")
	compileCmd.Flags().StringArrayVar(&compileSetVars, "set", nil,
		"Set a template variable as NAME=VALUE (repeatable, requires --template)")
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	input, err := readQueryInput(args)
	if err != nil {
		return err
	}

	nodes, err := query.Parse(input)
	if err != nil {
		return err
	}
	if err := query.Screen(nodes); err != nil {
		return err
	}

	result := query.NewValidator().Validate(nodes)
	reportIssues(result)
	if result.HasErrors() {
		return fmt.Errorf("validation failed: %v", result.Err())
	}
	if warningsAsErrors && len(result.ByLevel(query.LevelWarning)) > 0 {
		return fmt.Errorf("validation warnings treated as errors")
	}

	compiler := query.NewCompiler()
	if compileJSON {
		compiler.ForceFormat("json")
	}
	compiled, err := compiler.CompileNodes(nodes)
	if err != nil {
		return err
	}
	return writeOutput(compiled)
}

// readQueryInput resolves the query text: a stored template, a file,
// or stdin.
func readQueryInput(args []string) (string, error) {
	if compileTemplateName != "" {
		return templateInput()
	}
	if len(compileSetVars) > 0 {
		return "", fmt.Errorf("--set requires --template")
	}

	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read query file: %w", err)
	}
	return string(data), nil
}

func templateInput() (string, error) {
	store, err := templateStore()
	if err != nil {
		return "", err
	}
	vars, err := parseSetVars(compileSetVars)
	if err != nil {
		return "", err
	}
	return store.Instantiate(compileTemplateName, vars)
}

func parseSetVars(pairs []string) (map[string]string, error) {
	blocked := security.NormalizePatterns(cfg.Security.BlockedPatterns, nil)
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid --set value %q, expected NAME=VALUE", pair)
		}
		if err := security.ValidateDirectiveContent(value); err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		if pattern, ok := security.MatchPattern(value, blocked); ok {
			return nil, fmt.Errorf("variable %s matches blocked pattern %q", name, pattern)
		}
		vars[name] = value
	}
	return vars, nil
}

func reportIssues(result *query.ValidationResult) {
	for _, issue := range result.ByLevel(query.LevelWarning) {
		logger.Warn("%s", security.SanitizeForLogging(issue.Message))
	}
	for _, issue := range result.ByLevel(query.LevelInfo) {
		logger.Info("%s", security.SanitizeForLogging(issue.Message))
	}
}

// writeOutput sends the compiled prompt to stdout or the --output
// file, enforcing the configured path restrictions.
func writeOutput(compiled string) error {
	if compileOutput == "" {
		fmt.Println(compiled)
		return nil
	}

	// Without a configured allow-list output is restricted to relative
	// and temporary paths; allowed_paths opts specific trees in.
	checker := security.NewPathChecker(cfg.Security.AllowedPaths)
	if checker.HasRestrictions() {
		if err := checker.CheckPath(compileOutput); err != nil {
			return err
		}
	} else if err := security.ValidateFilePath(compileOutput); err != nil {
		return err
	}

	if dir := filepath.Dir(compileOutput); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(compileOutput, []byte(compiled), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	logger.Info("compiled prompt written to %s", compileOutput)
	return nil
}
