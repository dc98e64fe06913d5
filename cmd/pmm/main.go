// Command pmm is the operator CLI for the event ledger and its
// projections, grounded on cmd/bd/main.go's cobra root-command
// construction: a package-level rootCmd, one file per subcommand family,
// persistent flags bound through viper, and lipgloss-styled section
// headers for human-readable output.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/onanski/pmm/internal/config"
	"github.com/onanski/pmm/internal/telemetry"
)

var (
	configPathFlag string
	ledgerPathFlag string
	backendFlag    string
	natsURLFlag    string
	colorFlag      bool
	cfg            config.Config
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"})
var mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"})

func renderHeader(text string) string {
	if !cfg.Color {
		return text
	}
	return headerStyle.Render(text)
}

var rootCmd = &cobra.Command{
	Use:   "pmm",
	Short: "pmm - ledger-backed self-model projections",
	Long:  `pmm drives a replayable event ledger and its deterministic projections: a recursive self-model, a causal meme-graph, and a concept-graph.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPathFlag, "")
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// A project-local .pmm.yaml (read directly, bypassing viper) can
		// override the backend/color defaults before explicit flags apply.
		local := config.LoadLocalConfig(".")
		if local.Backend != "" {
			loaded.Backend = local.Backend
		}
		if local.Color != nil {
			loaded.Color = *local.Color
		}

		if cmd.Flags().Changed("ledger") {
			loaded.LedgerPath = ledgerPathFlag
		}
		if cmd.Flags().Changed("backend") {
			loaded.Backend = config.Backend(backendFlag)
		}
		if cmd.Flags().Changed("nats") {
			loaded.NATSURL = natsURLFlag
		}
		if cmd.Flags().Changed("color") {
			loaded.Color = colorFlag
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&ledgerPathFlag, "ledger", "", "path to the sqlite ledger file")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "ledger backend: sqlite or memory")
	rootCmd.PersistentFlags().StringVar(&natsURLFlag, "nats", "", "NATS JetStream URL for fan-out publishing")
	rootCmd.PersistentFlags().BoolVar(&colorFlag, "color", true, "colorize CLI output")

	rootCmd.AddCommand(rsmCmd)
	rootCmd.AddCommand(goalsCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(pmCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	shutdown := telemetry.Init()
	defer shutdown()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
