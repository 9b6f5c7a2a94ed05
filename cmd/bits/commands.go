package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geal-ai/bitspacket/internal/batch"
	"github.com/geal-ai/bitspacket/internal/watch"
)

var historyLimit int

var decodeCmd = &cobra.Command{
	Use:   "decode [FILE|-]",
	Short: "Decode one transmission and print its version sum and value",
	Long: `Reads a single hexadecimal transmission from FILE (or stdin) and prints
two lines: the sum of all packet versions, then the evaluated value.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

var evalCmd = &cobra.Command{
	Use:   "eval HEX...",
	Short: "Decode transmissions given as arguments",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEval,
}

var treeCmd = &cobra.Command{
	Use:   "tree [FILE|-]",
	Short: "Print the packet tree of a transmission",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTree,
}

var batchCmd = &cobra.Command{
	Use:   "batch [FILE|-]",
	Short: "Decode one transmission per line, concurrently",
	Long: `Decodes every non-blank line of FILE (or stdin) that does not start with '#'.
Up to batch.workers lines are decoded at once; output keeps input order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Decode transmission files as they are written to DIR",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently recorded decodes",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func runDecode(cmd *cobra.Command, args []string) error {
	source, input, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	rec, err := openRecorder()
	if err != nil {
		return err
	}
	defer rec.Close()

	p, err := newDecoder().DecodeHex(input)
	rec.record(cmd.Context(), source, input, p, err)
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return emitJSON(out, newJSONResult(source, p, nil, true))
	}
	printAnswers(out, p)
	return nil
}

func runEval(cmd *cobra.Command, args []string) error {
	rec, err := openRecorder()
	if err != nil {
		return err
	}
	defer rec.Close()

	dec := newDecoder()
	out := cmd.OutOrStdout()
	results := make([]jsonResult, 0, len(args))
	failed := 0
	for _, hex := range args {
		p, err := dec.DecodeHex(hex)
		rec.record(cmd.Context(), "eval", hex, p, err)
		if err != nil {
			failed++
		}
		switch {
		case asJSON:
			results = append(results, newJSONResult(hex, p, err, false))
		case len(args) == 1 && err == nil:
			printAnswers(out, p)
		default:
			printLine(out, hex, p, err)
		}
	}
	if asJSON {
		if err := emitJSON(out, results); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d transmissions failed", failed, len(args))
	}
	return nil
}

func runTree(cmd *cobra.Command, args []string) error {
	source, input, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	p, err := newDecoder().DecodeHex(input)
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	printTree(cmd.OutOrStdout(), p)
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	source, input, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	lines, err := batch.ReadLines(strings.NewReader(input))
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	rec, err := openRecorder()
	if err != nil {
		return err
	}
	defer rec.Close()

	outcomes := batch.Run(cmd.Context(), lines, batch.Options{
		Workers: cfg.Batch.Workers,
		Decoder: newDecoder(),
		Logger:  logger,
	})

	out := cmd.OutOrStdout()
	results := make([]jsonResult, 0, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		label := fmt.Sprintf("%s:%d", source, o.Num)
		rec.record(cmd.Context(), label, o.Text, o.Packet, o.Err)
		if o.Err != nil {
			failed++
		}
		if asJSON {
			results = append(results, newJSONResult(label, o.Packet, o.Err, false))
			continue
		}
		printLine(out, label, o.Packet, o.Err)
	}
	if asJSON {
		if err := emitJSON(out, results); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d transmissions failed", failed, len(outcomes))
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := openRecorder()
	if err != nil {
		return err
	}
	defer rec.Close()

	out := cmd.OutOrStdout()
	handle := func(path string, outcomes []batch.Outcome) {
		for _, o := range outcomes {
			label := fmt.Sprintf("%s:%d", path, o.Num)
			rec.record(ctx, label, o.Text, o.Packet, o.Err)
			printLine(out, label, o.Packet, o.Err)
		}
	}
	w, err := watch.New(args[0], batch.Options{
		Workers: cfg.Batch.Workers,
		Decoder: newDecoder(),
		Logger:  logger,
	}, handle, logger)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(ctx)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg.Store.Path == "" {
		return errors.New("no history database: pass --db or set store.path")
	}
	rec, err := openRecorder()
	if err != nil {
		return err
	}
	defer rec.Close()

	entries, err := rec.st.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	logger.Debug("history listed", zap.Int("entries", len(entries)))

	out := cmd.OutOrStdout()
	for _, e := range entries {
		result := fmt.Sprintf("version_sum=%d\tvalue=%s", e.VersionSum, e.Value)
		if e.Error != "" {
			result = "error: " + e.Error
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Source, abbreviate(e.Input, 24), result)
	}
	return nil
}

// abbreviate shortens s to at most n bytes, marking the cut with "...".
func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
