package commands

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "docstruct",
	Short: "docstruct - AI-assisted PDF to markdown extraction",
	Long: `docstruct extracts structured content from PDF documents and renders
it as a single markdown file: prose paragraphs with headings, tables
converted to markdown tables, and images replaced by generated
descriptions, all in the original reading order.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
