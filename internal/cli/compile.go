package cli

import (
	"fmt"
	"os"

	"github.com/hupe1980/beamdec/fst"
	"github.com/spf13/cobra"
)

var (
	compileSymbols     string
	compileCompression string
)

var compileCmd = &cobra.Command{
	Use:   "compile <text-graph> <out>",
	Short: "Convert a text graph to the binary format",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().StringVar(&compileSymbols, "symbols", "", "Output symbol table for symbolic output labels")
	compileCmd.Flags().StringVar(&compileCompression, "compression", "zstd", "Payload compression: none, lz4 or zstd")
}

func runCompile(cmd *cobra.Command, args []string) error {
	c, err := fst.ParseCompression(compileCompression)
	if err != nil {
		return err
	}
	syms, err := loadSymbols(compileSymbols)
	if err != nil {
		return err
	}
	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()
	g, err := fst.ReadText(in, syms)
	if err != nil {
		return err
	}

	out, err := os.Create(args[1])
	if err != nil {
		return err
	}
	if err := fst.Write(out, g, c); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "compiled %d states, %d arcs (%s)\n", g.NumStates(), g.NumArcs(), c)
	return nil
}
