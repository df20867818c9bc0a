package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

var (
	registry   = make(map[EntityType]Definition)
	aliasIdx   = make(map[EntityType]map[string]string) // folded alias -> canonical field
	registryMu sync.RWMutex
)

// Register adds an entity definition to the registry.
// Panics on a duplicate entity type or when two different fields of one
// entity claim the same folded alias; mapping tables are validated here,
// at load time, not during imports.
func Register(def Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Entity]; exists {
		panic(fmt.Sprintf("entity already registered: %s", def.Entity))
	}

	aliases := make(map[string]string)
	for _, f := range def.Fields {
		names := append([]string{f.Name}, f.Aliases...)
		for _, a := range names {
			folded := FoldColumn(a)
			if folded == "" {
				panic(fmt.Sprintf("%s.%s: empty alias %q", def.Entity, f.Name, a))
			}
			if owner, ok := aliases[folded]; ok && owner != f.Name {
				panic(fmt.Sprintf("%s: alias %q claimed by both %s and %s", def.Entity, a, owner, f.Name))
			}
			aliases[folded] = f.Name
		}
	}

	registry[def.Entity] = def
	aliasIdx[def.Entity] = aliases
}

// Get returns the definition for an entity type.
func Get(entity EntityType) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[entity]
	return def, ok
}

// All returns every registered definition, sorted by entity type for
// consistent ordering.
func All() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Entity < result[j].Entity
	})

	return result
}

// CanonicalField resolves a raw column name to the canonical field name for
// an entity type, using the folded alias table.
func CanonicalField(entity EntityType, rawColumn string) (string, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	aliases, ok := aliasIdx[entity]
	if !ok {
		return "", false
	}
	field, ok := aliases[FoldColumn(rawColumn)]
	return field, ok
}

// FoldColumn reduces a column name to lower-case letters and digits, so
// "Client Number", "ClientNumber" and "client_number" compare equal.
func FoldColumn(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
