// Command bits decodes BITS transmissions and prints their version sum and
// value.
//
// Usage:
//
//	bits decode [FILE|-]
//	bits eval HEX...
//	bits tree [FILE|-]
//	bits batch FILE
//	bits watch DIR
//	bits history
//
// Examples:
//
//	bits decode input.txt
//	echo 9C0141080250320F1802104A08 | bits decode --json
//	bits eval C200B40A82 04005AC33890
//	bits --db history.db batch transmissions.txt
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geal-ai/bitspacket"
	"github.com/geal-ai/bitspacket/internal/config"
	"github.com/geal-ai/bitspacket/internal/logging"
)

var (
	// Global flags
	cfgPath string
	verbose bool
	dbPath  string
	asJSON  bool

	// Set up by PersistentPreRunE.
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bits",
	Short: "Decode BITS packet transmissions",
	Long: `bits decodes hexadecimal BITS transmissions into packet trees,
reports the sum of all packet versions and evaluates the expression
the packets encode.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Store.Path = dbPath
		}
		logger, err = logging.New(cfg.Log, verbose)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging, including one entry per decoded packet")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "record decodes in this SQLite history database")

	decodeCmd.Flags().BoolVar(&asJSON, "json", false, "print the result and packet tree as JSON")
	evalCmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	batchCmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show")

	rootCmd.AddCommand(decodeCmd, evalCmd, treeCmd, batchCmd, watchCmd, historyCmd)
}

// newDecoder returns a decoder configured from cfg that traces to logger.
func newDecoder() *bitspacket.Decoder {
	opts := append(cfg.DecoderOptions(), bitspacket.WithLogger(logger))
	return bitspacket.NewDecoder(opts...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
