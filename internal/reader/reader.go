// Package reader turns source files into RawRecord sequences. It reads
// tabular CSV and nested JSON/YAML shapes; entity-type classification is
// supplied by the caller, never inferred here.
package reader

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/praxishq/intake/internal/schema"
)

// Read parses one source file into raw records tagged with the entity-type
// hint. The format is chosen by extension: .csv is tabular, .json and
// .yaml/.yml are nested.
func Read(path string, entity schema.EntityType) ([]schema.RawRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path, entity)
	case ".json":
		return readJSON(path, entity)
	case ".yaml", ".yml":
		return readYAML(path, entity)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

func readCSV(path string, entity schema.EntityType) ([]schema.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows tolerated; short rows leave fields absent
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	if len(header) > 0 {
		// Windows exports prefix the first header cell with a UTF-8 BOM.
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	base := filepath.Base(path)
	records := make([]schema.RawRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		values := make(map[string]string, len(header))
		for j, name := range header {
			if name == "" || j >= len(row) {
				continue
			}
			values[name] = row[j]
		}
		records = append(records, schema.RawRecord{
			Entity: entity,
			Source: base,
			Row:    i + 2, // 1-based, after the header row
			Names:  append([]string(nil), header...),
			Values: values,
		})
	}

	return records, nil
}

func readJSON(path string, entity schema.EntityType) ([]schema.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return fromNested(doc, filepath.Base(path), entity)
}

func readYAML(path string, entity schema.EntityType) ([]schema.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return fromNested(doc, filepath.Base(path), entity)
}

// fromNested accepts the two nested shapes the engine recognizes: an array
// of flat objects, or an object whose list-valued members are concatenated
// (the common {"invoices": [...]} wrapper).
func fromNested(doc any, source string, entity schema.EntityType) ([]schema.RawRecord, error) {
	var objects []any

	switch v := doc.(type) {
	case []any:
		objects = v
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if list, ok := v[k].([]any); ok {
				objects = append(objects, list...)
			}
		}
		if len(objects) == 0 {
			objects = []any{v}
		}
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%s: top-level value is neither an object nor an array", source)
	}

	records := make([]schema.RawRecord, 0, len(objects))
	for i, obj := range objects {
		fields, ok := obj.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: record %d is not an object", source, i+1)
		}

		names := make([]string, 0, len(fields))
		for k := range fields {
			names = append(names, k)
		}
		sort.Strings(names)

		values := make(map[string]string, len(fields))
		for _, name := range names {
			s, ok := stringify(fields[name])
			if !ok {
				return nil, fmt.Errorf("%s: record %d: field %q is a nested structure", source, i+1, name)
			}
			values[name] = s
		}

		records = append(records, schema.RawRecord{
			Entity: entity,
			Source: source,
			Row:    i + 1,
			Names:  names,
			Values: values,
		})
	}

	return records, nil
}

// stringify renders a scalar as its raw string form. Nested maps and
// arrays are rejected.
func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int:
		return strconv.Itoa(t), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	default:
		return "", false
	}
}
