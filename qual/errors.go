package qual

import "fmt"

type UnknownQualifierError struct {
	Qualifier Qualifier
}

func (e *UnknownQualifierError) Error() string {
	return fmt.Sprintf("qualifier %v does not belong to any hierarchy", e.Qualifier)
}

type DuplicateHierarchyError struct {
	First, Second Qualifier
}

func (e *DuplicateHierarchyError) Error() string {
	return fmt.Sprintf("qualifiers %v and %v belong to the same hierarchy", e.First, e.Second)
}

// MalformedLatticeError is returned when the qualifiers and edges given to NewLattice do not form a lattice
type MalformedLatticeError struct {
	Lattice string
	Reason  string
}

func (e *MalformedLatticeError) Error() string {
	return fmt.Sprintf("hierarchy %s is not a lattice: %s", e.Lattice, e.Reason)
}
