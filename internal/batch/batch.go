// Package batch decodes many transmissions concurrently.
package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/geal-ai/bitspacket"
)

// maxLineBytes caps a single transmission line. Puzzle inputs are a few
// kilobytes; the decoder's own byte limit applies after hex decoding.
const maxLineBytes = 4 << 20

// Line is one transmission and its 1-based line number in the source.
type Line struct {
	Num  int
	Text string
}

// Outcome is the result of decoding one Line.
type Outcome struct {
	Line
	Packet *bitspacket.Packet
	Err    error
}

// Options configures Run.
type Options struct {
	// Workers bounds concurrent decodes; values below 1 mean one.
	Workers int
	// Decoder decodes each line; nil uses a default decoder.
	Decoder *bitspacket.Decoder
	Logger  *zap.Logger
}

// ReadLines reads transmissions from r, skipping blank lines and lines
// starting with '#'.
func ReadLines(r io.Reader) ([]Line, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []Line
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		lines = append(lines, Line{Num: n, Text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading line %d: %w", n+1, err)
	}
	return lines, nil
}

// Run decodes lines with at most opts.Workers decodes in flight and returns
// one Outcome per line in input order. A failing line does not stop the
// others. Once ctx is done no further lines are started; their outcomes
// carry ctx.Err().
func Run(ctx context.Context, lines []Line, opts Options) []Outcome {
	dec := opts.Decoder
	if dec == nil {
		dec = bitspacket.NewDecoder()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	workers := max(opts.Workers, 1)

	out := make([]Outcome, len(lines))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, l := range lines {
		i, l := i, l
		out[i].Line = l
		if err := ctx.Err(); err != nil {
			out[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			p, err := dec.DecodeHex(l.Text)
			if err != nil {
				log.Debug("decode failed", zap.Int("line", l.Num), zap.Error(err))
				out[i].Err = fmt.Errorf("line %d: %w", l.Num, err)
				return nil
			}
			out[i].Packet = p
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
		}
	}
	log.Info("batch decoded",
		zap.Int("lines", len(lines)),
		zap.Int("failed", failed),
		zap.Int("workers", workers))
	return out
}
