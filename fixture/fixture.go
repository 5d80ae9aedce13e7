// Package fixture loads YAML files that declare qualifier hierarchies, classes, type
// variables and least upper bound cases, for example:
//
//	hierarchies:
//	  - name: nullness
//	    qualifiers:
//	      NonNull: [Nullable]
//	classes:
//	  - name: List
//	    params: [E]
//	typeVars:
//	  - name: T
//	    upper: "@NonNull Object"
//	cases:
//	  - name: list
//	    type1: "@NonNull List<@NonNull String>"
//	    type2: "@NonNull List<@Nullable String>"
//	    expect: "@NonNull List<@Nullable String>"
//
// A case without a target is joined at the plain least upper bound of both types.
package fixture

import (
	"github.com/cottand/qlub/atm"
	"github.com/cottand/qlub/internal/log"
	"github.com/cottand/qlub/lub"
	"github.com/cottand/qlub/qual"
	"github.com/cottand/qlub/typemodel"
	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"io"
	"os"
)

var logger = log.DefaultLogger.With("section", "fixture")

type File struct {
	Hierarchies []Hierarchy `yaml:"hierarchies"`
	Classes     []Class     `yaml:"classes"`
	TypeVars    []TypeVar   `yaml:"typeVars"`
	Cases       []Case      `yaml:"cases"`
}

type Hierarchy struct {
	Name string `yaml:"name"`
	// Qualifiers maps each qualifier to its direct supertypes
	Qualifiers map[string][]string `yaml:"qualifiers"`
	// Default is the qualifier of unannotated positions, the top qualifier if empty
	Default string `yaml:"default"`
}

type Class struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params"`
	Supers []string `yaml:"supers"`
}

type TypeVar struct {
	Name     string `yaml:"name"`
	Upper    string `yaml:"upper"`
	Lower    string `yaml:"lower"`
	Captured bool   `yaml:"captured"`
}

type Case struct {
	Name   string `yaml:"name"`
	Type1  string `yaml:"type1"`
	Type2  string `yaml:"type2"`
	Target string `yaml:"target"`
	Expect string `yaml:"expect"`
}

// Suite is a loaded fixture file
type Suite struct {
	Hierarchy *qual.Hierarchy
	Model     *typemodel.Model
	Cases     []Case
}

func LoadFile(path string) (*Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open fixture")
	}
	defer f.Close()
	suite, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "in %s", path)
	}
	return suite, nil
}

func Load(r io.Reader) (*Suite, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, errors.Wrap(err, "could not decode fixture")
	}
	return file.Build()
}

// Build declares everything in f, in order: hierarchies, classes, then type variables
func (f *File) Build() (*Suite, error) {
	if len(f.Hierarchies) == 0 {
		return nil, errors.New("fixture declares no qualifier hierarchy")
	}
	lattices := make([]*qual.Lattice, 0, len(f.Hierarchies))
	for _, h := range f.Hierarchies {
		supertypes := make(map[qual.Qualifier][]qual.Qualifier, len(h.Qualifiers))
		for q, supers := range h.Qualifiers {
			qs := make([]qual.Qualifier, 0, len(supers))
			for _, super := range supers {
				qs = append(qs, qual.Qualifier(super))
			}
			supertypes[qual.Qualifier(q)] = qs
		}
		lattice, err := qual.NewLattice(h.Name, supertypes)
		if err != nil {
			return nil, errors.Wrapf(err, "in hierarchy %s", h.Name)
		}
		if h.Default != "" {
			if lattice, err = lattice.WithDefault(qual.Qualifier(h.Default)); err != nil {
				return nil, errors.Wrapf(err, "in hierarchy %s", h.Name)
			}
		}
		lattices = append(lattices, lattice)
	}
	hierarchy, err := qual.NewHierarchy(lattices...)
	if err != nil {
		return nil, err
	}

	model := typemodel.New(hierarchy)
	for _, c := range f.Classes {
		if err := model.AddClass(c.Name, c.Params, c.Supers...); err != nil {
			return nil, err
		}
	}
	for _, tv := range f.TypeVars {
		if err := model.DeclareTypeVar(tv.Name, tv.Upper, tv.Lower, tv.Captured); err != nil {
			return nil, err
		}
	}

	names := set.New[string](len(f.Cases))
	for i, c := range f.Cases {
		if c.Name == "" {
			return nil, errors.Errorf("case %d has no name", i)
		}
		if !names.Insert(c.Name) {
			return nil, errors.Errorf("duplicate case %s", c.Name)
		}
		if c.Type1 == "" || c.Type2 == "" {
			return nil, errors.Errorf("case %s needs both type1 and type2", c.Name)
		}
	}
	logger.Debug("loaded fixture", "hierarchies", len(lattices), "classes", len(f.Classes), "typeVars", len(f.TypeVars), "cases", len(f.Cases))
	return &Suite{Hierarchy: hierarchy, Model: model, Cases: f.Cases}, nil
}

func (s *Suite) Case(name string) (Case, bool) {
	for _, c := range s.Cases {
		if c.Name == name {
			return c, true
		}
	}
	return Case{}, false
}

// Result is the outcome of running a Case
type Result struct {
	Case
	Type1, Type2 atm.Node
	Target       atm.Shape
	Got          atm.Node
	Err          error
}

// Passed reports whether the case ran without error and, if it has an expectation,
// produced it
func (r Result) Passed() bool {
	return r.Err == nil && (r.Expect == "" || r.matches())
}

func (r Result) matches() bool {
	return r.Got != nil && r.Got.String() == r.Expect
}

// Run computes the least upper bound of c with l
func (s *Suite) Run(l *lub.Lubber, c Case) Result {
	res := Result{Case: c}
	if res.Type1, res.Err = s.Model.Parse(c.Type1); res.Err != nil {
		res.Err = errors.Wrap(res.Err, "type1")
		return res
	}
	if res.Type2, res.Err = s.Model.Parse(c.Type2); res.Err != nil {
		res.Err = errors.Wrap(res.Err, "type2")
		return res
	}
	if c.Target != "" {
		res.Target, res.Err = s.Model.ParseShape(c.Target)
	} else {
		res.Target, res.Err = s.Model.PlainLeastUpperBound(res.Type1.Shape(), res.Type2.Shape())
	}
	if res.Err != nil {
		res.Err = errors.Wrap(res.Err, "target")
		return res
	}
	res.Got, res.Err = l.LeastUpperBound(res.Type1, res.Type2, res.Target)
	logger.Debug("ran case", "name", c.Name, "got", res.Got, "err", res.Err)
	return res
}
