package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/geal-ai/bitspacket"
	"github.com/geal-ai/bitspacket/internal/store"
)

// jsonResult is one transmission in JSON output.
type jsonResult struct {
	Source     string             `json:"source,omitempty"`
	VersionSum int                `json:"version_sum"`
	Value      string             `json:"value,omitempty"`
	Expression string             `json:"expression,omitempty"`
	Packet     *bitspacket.Packet `json:"packet,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func newJSONResult(source string, p *bitspacket.Packet, err error, withTree bool) jsonResult {
	r := jsonResult{Source: source}
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.VersionSum = p.VersionSum()
	r.Value = p.Value().String()
	r.Expression = p.String()
	if withTree {
		r.Packet = p
	}
	return r
}

// emitJSON writes v to w as indented JSON.
func emitJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

// printAnswers writes the version sum and the value on separate lines.
func printAnswers(w io.Writer, p *bitspacket.Packet) {
	fmt.Fprintln(w, p.VersionSum())
	fmt.Fprintln(w, p.Value())
}

// printLine writes one labelled result per line, for multi-transmission output.
func printLine(w io.Writer, label string, p *bitspacket.Packet, err error) {
	if err != nil {
		fmt.Fprintf(w, "%s\terror: %v\n", label, err)
		return
	}
	fmt.Fprintf(w, "%s\tversion_sum=%d\tvalue=%s\n", label, p.VersionSum(), p.Value())
}

// printTree writes p as an indented tree followed by its expression.
func printTree(w io.Writer, p *bitspacket.Packet) {
	p.Walk(func(sp *bitspacket.Packet, depth int) bool {
		indent := strings.Repeat("  ", depth)
		if sp.IsLiteral() {
			fmt.Fprintf(w, "%sv%d lit %s  [bits %d+%d]\n", indent, sp.Version, sp.Literal, sp.Offset, sp.Bits)
		} else {
			fmt.Fprintf(w, "%sv%d %s/%s = %s  [bits %d+%d]\n", indent, sp.Version, sp.TypeID, sp.LengthType, sp.Value(), sp.Offset, sp.Bits)
		}
		return true
	})
	fmt.Fprintln(w)
	fmt.Fprintf(w, "expression  : %s\n", p)
	fmt.Fprintf(w, "version sum : %d\n", p.VersionSum())
	fmt.Fprintf(w, "value       : %s\n", p.Value())
}

// readInput returns the contents of the named file, or stdin for "" and "-".
func readInput(stdin io.Reader, args []string) (string, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return "stdin", string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("read input: %w", err)
	}
	return args[0], string(data), nil
}

// recorder writes decodes to the history store when one is configured.
type recorder struct {
	st *store.Store
}

func openRecorder() (*recorder, error) {
	if cfg.Store.Path == "" {
		return &recorder{}, nil
	}
	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return nil, err
	}
	return &recorder{st: st}, nil
}

func (r *recorder) record(ctx context.Context, source, input string, p *bitspacket.Packet, err error) {
	if r.st == nil {
		return
	}
	if _, rerr := r.st.Record(ctx, store.EntryFor(source, strings.TrimSpace(input), p, err)); rerr != nil {
		logger.Warn("history not recorded", zap.String("source", source), zap.Error(rerr))
	}
}

func (r *recorder) Close() error {
	if r.st == nil {
		return nil
	}
	return r.st.Close()
}
