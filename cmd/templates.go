package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbjwhs/cql-sub000/internal/logger"
	"github.com/dbjwhs/cql-sub000/internal/template"
)

var (
	templateShowRaw  bool
	templateShowVars []string
	docsOutput       string
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage stored query templates",
	Long: `Templates are reusable CQL query fragments stored under the
template directory. Names may carry a category prefix such as
user/my-template or common/base; bare names are saved under user/.`,
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := templateStore()
		if err != nil {
			return err
		}
		names, err := store.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No templates found.")
			return nil
		}
		for _, name := range names {
			line := name
			if meta, err := store.GetMetadata(name); err == nil && meta.Description != "" {
				line += " - " + meta.Description
			}
			fmt.Println(line)
		}
		return nil
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show a template, resolved and instantiated",
	Long: `Show prints the template with its inheritance chain resolved and
variables substituted. Use --set to override variable defaults, or
--raw for the stored text.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := templateStore()
		if err != nil {
			return err
		}
		if templateShowRaw {
			content, err := store.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Print(content)
			return nil
		}

		vars, err := parseSetVars(templateShowVars)
		if err != nil {
			return err
		}
		content, err := store.Instantiate(args[0], vars)
		if err != nil {
			return err
		}
		fmt.Print(content)
		return nil
	},
}

var templatesSaveCmd = &cobra.Command{
	Use:   "save NAME FILE",
	Short: "Save a file as a template",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := templateStore()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read template file: %w", err)
		}
		if err := store.Save(args[0], string(data)); err != nil {
			return err
		}
		logger.Info("template %s saved", args[0])
		return nil
	},
}

var templatesDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a stored template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := templateStore()
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		logger.Info("template %s deleted", args[0])
		return nil
	},
}

var templatesValidateCmd = &cobra.Command{
	Use:   "validate [NAME]",
	Short: "Validate one template, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := templateStore()
		if err != nil {
			return err
		}
		validator := template.NewValidator(store)

		names := args
		if len(names) == 0 {
			names, err = store.List()
			if err != nil {
				return err
			}
		}

		failed := 0
		for _, name := range names {
			result, err := validator.ValidateTemplate(name)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", name, result.Summary())
			for _, issue := range result.Issues {
				fmt.Printf("  %s\n", issue)
			}
			if result.CountErrors() > 0 {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d template(s) failed validation", failed)
		}
		return nil
	},
}

var templatesDocsCmd = &cobra.Command{
	Use:   "docs [NAME]",
	Short: "Generate template documentation",
	Long: `Docs renders documentation for one template, or for the whole
collection when no name is given. With --output the format follows
the file extension: .md, .html or plain text.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := templateStore()
		if err != nil {
			return err
		}

		if docsOutput != "" {
			if len(args) > 0 {
				return fmt.Errorf("--output exports the full collection; omit the template name")
			}
			if err := store.ExportDocs(docsOutput); err != nil {
				return err
			}
			logger.Info("documentation written to %s", docsOutput)
			return nil
		}

		var doc string
		if len(args) == 1 {
			doc, err = store.GenerateDoc(args[0])
		} else {
			doc, err = store.GenerateAllDocs()
		}
		if err != nil {
			return err
		}
		fmt.Println(doc)
		return nil
	},
}

var templatesExportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Export documentation for the whole collection",
	Long: `Export writes documentation for every template to FILE. The
format follows the extension: .md, .html or plain text.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := templateStore()
		if err != nil {
			return err
		}
		if err := store.ExportDocs(args[0]); err != nil {
			return err
		}
		logger.Info("documentation written to %s", args[0])
		return nil
	},
}

var templatesParentsCmd = &cobra.Command{
	Use:   "parents NAME",
	Short: "Show a template's inheritance chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := templateStore()
		if err != nil {
			return err
		}
		chain, err := store.InheritanceChain(args[0])
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(chain, " -> "))
		return nil
	},
}

func init() {
	templatesShowCmd.Flags().BoolVar(&templateShowRaw, "raw", false,
		"Print the stored template text without resolving inheritance")
	templatesShowCmd.Flags().StringArrayVar(&templateShowVars, "set", nil,
		"Set a template variable as NAME=VALUE (repeatable)")
	templatesDocsCmd.Flags().StringVarP(&docsOutput, "output", "o", "",
		"Export documentation to a file (.md, .html or plain text)")

	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesShowCmd)
	templatesCmd.AddCommand(templatesSaveCmd)
	templatesCmd.AddCommand(templatesDeleteCmd)
	templatesCmd.AddCommand(templatesValidateCmd)
	templatesCmd.AddCommand(templatesDocsCmd)
	templatesCmd.AddCommand(templatesExportCmd)
	templatesCmd.AddCommand(templatesParentsCmd)
	rootCmd.AddCommand(templatesCmd)
}
