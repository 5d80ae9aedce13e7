package cmd

import (
	"fmt"
	"github.com/cottand/qlub/atm"
	"github.com/cottand/qlub/fixture"
	"github.com/cottand/qlub/internal/log"
	"github.com/cottand/qlub/lub"
	"github.com/kr/pretty"
	"github.com/spf13/cobra"
	"io"
	"log/slog"
)

var LubCmd = &cobra.Command{
	Use:          "lub fixture.yaml",
	Short:        "Compute the least upper bound of every case in a fixture",
	RunE:         runLub,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	caseName   *string
	dump       *bool
	depthLimit *int
	logLevel   *int
)

func init() {
	caseName = LubCmd.Flags().StringP("case", "c", "", "only run the case with this name")
	dump = LubCmd.Flags().Bool("dump", false, "print the structure of each result")
	depthLimit = LubCmd.Flags().Int("depth-limit", 0, "maximum recursion depth, 0 for the default")
	logLevel = LubCmd.Flags().IntP("log-level", "l", int(slog.LevelError), "log level")
}

func runLub(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*logLevel))

	suite, err := fixture.LoadFile(args[0])
	if err != nil {
		return fmt.Errorf("could not load fixture: %w", err)
	}
	cases := suite.Cases
	if *caseName != "" {
		c, ok := suite.Case(*caseName)
		if !ok {
			return fmt.Errorf("no case named %q in %s", *caseName, args[0])
		}
		cases = []fixture.Case{c}
	}

	lubber := lub.New(suite.Model, suite.Hierarchy, lub.Settings{DepthLimit: *depthLimit})
	out := cmd.OutOrStdout()
	passed := 0
	for _, c := range cases {
		res := suite.Run(lubber, c)
		printResult(out, res, *dump)
		if res.Passed() {
			passed++
		}
	}
	_, _ = fmt.Fprintf(out, "%d/%d cases passed\n", passed, len(cases))
	if passed < len(cases) {
		return fmt.Errorf("%d of %d cases failed", len(cases)-passed, len(cases))
	}
	return nil
}

func printResult(w io.Writer, res fixture.Result, dump bool) {
	status := "ok"
	if !res.Passed() {
		status = "FAIL"
	}
	_, _ = fmt.Fprintf(w, "%s: %s\n", res.Name, status)
	_, _ = fmt.Fprintf(w, "  type1:  %s\n", res.Case.Type1)
	_, _ = fmt.Fprintf(w, "  type2:  %s\n", res.Case.Type2)
	if res.Target != nil {
		_, _ = fmt.Fprintf(w, "  target: %s\n", res.Target)
	}
	if res.Err != nil {
		_, _ = fmt.Fprintf(w, "  error:  %s\n", lub.FormatWithCode(res.Err))
		return
	}
	_, _ = fmt.Fprintf(w, "  lub:    %s\n", res.Got)
	if !res.Passed() {
		_, _ = fmt.Fprintf(w, "  expect: %s\n", res.Expect)
	}
	if dump {
		_, _ = fmt.Fprintf(w, "%# v\n", pretty.Formatter(dumpOf(res.Got, make(map[atm.NodeID]bool))))
	}
}

// node is the structure of an annotated type as printed by --dump.
// Cycle marks a type variable already being printed further up.
type node struct {
	Kind  string
	Name  string
	Quals string
	Parts []node
	Cycle bool
}

func dumpOf(n atm.Node, onPath map[atm.NodeID]bool) node {
	if n == nil {
		return node{Kind: "<nil>"}
	}
	d := node{Kind: n.Kind().String(), Quals: n.Primary().String()}
	parts := func(nodes ...atm.Node) []node {
		dumped := make([]node, 0, len(nodes))
		for _, part := range nodes {
			dumped = append(dumped, dumpOf(part, onPath))
		}
		return dumped
	}
	switch t := n.(type) {
	case *atm.Primitive:
		d.Name = t.Name
	case *atm.Array:
		d.Parts = parts(t.Component)
	case *atm.Declared:
		d.Name = t.Name
		d.Parts = parts(t.TypeArgs...)
	case *atm.TypeVar:
		d.Name = t.Decl.Name
		if onPath[t.ID()] {
			d.Cycle = true
			return d
		}
		onPath[t.ID()] = true
		d.Parts = parts(t.Upper, t.Lower)
		delete(onPath, t.ID())
	case *atm.Wildcard:
		d.Parts = parts(t.Extends, t.Super)
	case *atm.Intersection:
		d.Parts = parts(t.Bounds...)
	case *atm.Union:
		d.Parts = parts(t.Alternatives...)
	}
	return d
}
