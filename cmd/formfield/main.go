package main

import (
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "formfield",
	Short: "Bind and render declarative <field> elements",
	Long:  `formfield composes <field> host elements with their templates, scaffolds hosts from OpenAPI operations and lets you try validation interactively.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		mode, _ := cmd.Flags().GetString("color")
		switch mode {
		case "on":
			color.NoColor = false
		case "off":
			color.NoColor = true
		default:
			color.NoColor = !isTerminal(os.Stdout)
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(scaffoldCmd)
	rootCmd.AddCommand(tryCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("config", "", "YAML or TOML config file")
	rootCmd.PersistentFlags().String("templates", "", "template directory (overrides config)")
	rootCmd.PersistentFlags().String("base-url", "", "remote template base URL (overrides config)")
	rootCmd.PersistentFlags().String("data", "", "JSON or YAML file seeding the scope")
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("formfield: ")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
