package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrDependencyCycle indicates the registered definitions contain a
	// circular dependency. Fatal: no pass may start.
	ErrDependencyCycle = errors.New("dependency cycle between entity types")

	// ErrMissingDependency indicates a requested entity type depends on a
	// type that is neither requested nor already complete.
	ErrMissingDependency = errors.New("missing dependency")
)

// ImportOrder returns the requested entity types sorted so every type
// appears after all of its dependencies. Types in done are treated as
// already imported and satisfy dependencies without being returned.
//
// DependsOn edges only order the requested passes; a hard failure is
// raised only when a required reference field points at a type that is
// neither requested nor done. Optional references (a matter's lead
// attorney, say) do not force their target's file to be present.
//
// The order is computed and validated before the first write; a cycle or an
// unsatisfiable dependency refuses the whole run.
func ImportOrder(requested []EntityType, done map[EntityType]bool) ([]EntityType, error) {
	requestedSet := make(map[EntityType]bool, len(requested))
	for _, e := range requested {
		requestedSet[e] = true
	}

	for _, e := range requested {
		def, ok := Get(e)
		if !ok {
			return nil, fmt.Errorf("unknown entity type: %s", e)
		}
		for _, spec := range def.Fields {
			if spec.Type != FieldReference || !spec.Required {
				continue
			}
			if !requestedSet[spec.References] && !done[spec.References] {
				return nil, fmt.Errorf("%w: %s requires %s", ErrMissingDependency, e, spec.References)
			}
		}
	}

	// Kahn's algorithm over the requested subset, with the requested slice
	// order as the stable tie-break.
	indegree := make(map[EntityType]int, len(requested))
	for _, e := range requested {
		def, _ := Get(e)
		for _, dep := range def.DependsOn {
			if requestedSet[dep] {
				indegree[e]++
			}
		}
	}

	order := make([]EntityType, 0, len(requested))
	emitted := make(map[EntityType]bool, len(requested))
	for len(order) < len(requested) {
		progressed := false
		for _, e := range requested {
			if emitted[e] || indegree[e] > 0 {
				continue
			}
			order = append(order, e)
			emitted[e] = true
			progressed = true
			for _, other := range requested {
				def, _ := Get(other)
				for _, dep := range def.DependsOn {
					if dep == e {
						indegree[other]--
					}
				}
			}
		}
		if !progressed {
			return nil, ErrDependencyCycle
		}
	}

	return order, nil
}
