package cmd

import (
	"fmt"
	"github.com/cottand/qlub/fixture"
	"github.com/spf13/cobra"
	"text/tabwriter"
)

var LatticeCmd = &cobra.Command{
	Use:          "lattice fixture.yaml",
	Short:        "Print the join table of every qualifier hierarchy in a fixture",
	RunE:         runLattice,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

func runLattice(cmd *cobra.Command, args []string) error {
	suite, err := fixture.LoadFile(args[0])
	if err != nil {
		return fmt.Errorf("could not load fixture: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, l := range suite.Hierarchy.Lattices() {
		_, _ = fmt.Fprintf(out, "%s: top %v, bottom %v, default %v\n", l.Name(), l.Top(), l.Bottom(), l.Default())
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		members := l.Members()
		_, _ = fmt.Fprint(w, "lub")
		for _, q := range members {
			_, _ = fmt.Fprintf(w, "\t%v", q)
		}
		_, _ = fmt.Fprintln(w)
		for _, a := range members {
			_, _ = fmt.Fprintf(w, "%v", a)
			for _, b := range members {
				join, ok := l.Join(a, b)
				if !ok {
					_, _ = fmt.Fprint(w, "\t-")
					continue
				}
				_, _ = fmt.Fprintf(w, "\t%v", join)
			}
			_, _ = fmt.Fprintln(w)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("could not write table: %w", err)
		}
	}
	return nil
}
