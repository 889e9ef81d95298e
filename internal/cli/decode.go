package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/hupe1980/beamdec"
	"github.com/hupe1980/beamdec/decodable"
	"github.com/hupe1980/beamdec/fst"
	"github.com/spf13/cobra"
)

var (
	decodeGraph     string
	decodeScores    string
	decodeSymbols   string
	decodeConfig    string
	decodeJSON      bool
	decodeNoFinal   bool
	decodeBeam      float64
	decodeMaxActive int
	decodeMinActive int
	decodeVerbose   bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode a cost matrix against a graph",
	RunE:  runDecode,
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeGraph, "graph", "g", "", "Graph file (binary or text)")
	decodeCmd.Flags().StringVarP(&decodeScores, "scores", "s", "", "Cost matrix, one frame per line")
	decodeCmd.Flags().StringVar(&decodeSymbols, "symbols", "", "Output symbol table")
	decodeCmd.Flags().StringVarP(&decodeConfig, "config", "c", "", "YAML options file")
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "Print the result as JSON")
	decodeCmd.Flags().BoolVar(&decodeNoFinal, "no-final", false, "Ignore final costs when picking the best path")
	decodeCmd.Flags().Float64Var(&decodeBeam, "beam", 0, "Override the beam")
	decodeCmd.Flags().IntVar(&decodeMaxActive, "max-active", 0, "Override max-active")
	decodeCmd.Flags().IntVar(&decodeMinActive, "min-active", -1, "Override min-active")
	decodeCmd.Flags().BoolVarP(&decodeVerbose, "verbose", "v", false, "Log per-frame statistics to stderr")
	_ = decodeCmd.MarkFlagRequired("graph")
	_ = decodeCmd.MarkFlagRequired("scores")
}

type decodeResult struct {
	OK            bool      `json:"ok"`
	Labels        []int32   `json:"labels"`
	Words         []string  `json:"words,omitempty"`
	Cost          float64   `json:"cost"`
	Final         bool      `json:"final"`
	Frames        int       `json:"frames"`
	TokensCreated uint64    `json:"tokens_created"`
	Options       optionsJS `json:"options"`
}

type optionsJS struct {
	Beam      float64 `json:"beam"`
	MaxActive int     `json:"max_active"`
	MinActive int     `json:"min_active"`
}

func decodeOptions() (beamdec.Options, error) {
	opts := beamdec.DefaultOptions()
	if decodeConfig != "" {
		var err error
		if opts, err = beamdec.LoadOptions(decodeConfig); err != nil {
			return opts, err
		}
	}
	if decodeBeam > 0 {
		opts.Beam = decodeBeam
	}
	if decodeMaxActive > 0 {
		opts.MaxActive = decodeMaxActive
	}
	if decodeMinActive >= 0 {
		opts.MinActive = decodeMinActive
	}
	return opts, opts.Validate()
}

func runDecode(cmd *cobra.Command, args []string) error {
	opts, err := decodeOptions()
	if err != nil {
		return err
	}
	syms, err := loadSymbols(decodeSymbols)
	if err != nil {
		return err
	}
	graph, err := fst.Load(decodeGraph, syms)
	if err != nil {
		return err
	}

	f, err := os.Open(decodeScores)
	if err != nil {
		return err
	}
	scores, err := decodable.ReadMatrix(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("load scores %s: %w", decodeScores, err)
	}
	if scores.NumFramesReady() > 0 {
		if l := fst.MaxInputLabel(graph); int(l) > scores.NumIndices() {
			return fmt.Errorf("graph uses input label %d but %s has %d columns", l, decodeScores, scores.NumIndices())
		}
	}

	logger := beamdec.NoopLogger()
	if decodeVerbose {
		logger = beamdec.NewTextLogger(slog.LevelDebug)
	}
	dec, err := beamdec.New(graph, opts, beamdec.WithLogger(logger.WithUtterance(decodeScores)))
	if err != nil {
		return err
	}
	defer dec.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := dec.Decode(ctx, scores); err != nil {
		return err
	}

	path, ok := dec.BestPath(!decodeNoFinal)
	res := decodeResult{
		OK:            ok,
		Labels:        make([]int32, len(path.Labels)),
		Cost:          path.Cost,
		Final:         path.Final,
		Frames:        dec.FramesDecoded(),
		TokensCreated: dec.Stats().TokensCreated,
		Options:       optionsJS{Beam: opts.Beam, MaxActive: opts.MaxActive, MinActive: opts.MinActive},
	}
	for i, l := range path.Labels {
		res.Labels[i] = int32(l)
	}
	if syms != nil {
		res.Words = syms.Strings(path.Labels)
	}
	return printResult(cmd, res, path.Labels)
}

func printResult(cmd *cobra.Command, res decodeResult, labels []fst.Label) error {
	out := cmd.OutOrStdout()
	if decodeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if !res.OK {
		fmt.Fprintf(out, "no path (%d frames)\n", res.Frames)
		return nil
	}
	words := res.Words
	if words == nil {
		words = make([]string, len(labels))
		for i, l := range labels {
			words[i] = fmt.Sprint(l)
		}
	}
	fmt.Fprintf(out, "%s\n", strings.Join(words, " "))
	fmt.Fprintf(out, "cost %.4f frames %d final %t\n", res.Cost, res.Frames, res.Final)
	return nil
}
