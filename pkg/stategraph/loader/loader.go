// Package loader reads graph definitions from YAML, JSON and HCL files.
//
// All three formats describe the same stategraph.GraphSpec. YAML and JSON
// use the service wire form:
//
//	name: grader
//	start_node: start
//	end_nodes: [grade_a]
//	nodes:
//	  - node_id: start
//	    function_type: custom
//	    function_params: {message: grading started}
//	edges:
//	  - from_node: start
//	    to_node: grade_a
//	    condition_type: key_greater_than
//	    condition_params: {key: score, threshold: 79}
//
// HCL uses labeled blocks for nodes and edges:
//
//	name       = "grader"
//	start_node = "start"
//
//	node "start" {
//	  function_type   = "custom"
//	  function_params = { message = "grading started" }
//	}
//
//	edge "start" "grade_a" {
//	  condition_type   = "key_greater_than"
//	  condition_params = { key = "score", threshold = 79 }
//	}
//
// The loader only decodes. Compile the returned spec to validate it.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for files whose extension names no known format.
var ErrUnsupportedFormat = errors.New("unsupported graph file format")

// Extensions lists the file extensions Load understands.
var Extensions = []string{".yaml", ".yml", ".json", ".hcl"}

// Load reads one graph file, choosing the format by extension.
func Load(path string) (stategraph.GraphSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return stategraph.GraphSpec{}, fmt.Errorf("read graph file: %w", err)
	}

	var spec stategraph.GraphSpec
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		spec, err = FromYAML(data)
	case ".json":
		spec, err = FromJSON(data)
	case ".hcl":
		spec, err = FromHCL(data, path)
	default:
		return stategraph.GraphSpec{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return stategraph.GraphSpec{}, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// LoadAll loads every graph file under paths. Directories are walked
// recursively and files with unknown extensions inside them are skipped;
// a file named explicitly must have a known extension. Results are ordered
// by path.
func LoadAll(paths ...string) ([]stategraph.GraphSpec, error) {
	files, err := Find(paths...)
	if err != nil {
		return nil, err
	}
	specs := make([]stategraph.GraphSpec, 0, len(files))
	for _, file := range files {
		spec, err := Load(file)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// FromYAML decodes a graph in the YAML wire form.
func FromYAML(data []byte) (stategraph.GraphSpec, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return stategraph.GraphSpec{}, fmt.Errorf("parse yaml: %w", err)
	}
	// Round-trip through JSON so YAML and JSON share one decoder.
	encoded, err := json.Marshal(config.Normalize(raw))
	if err != nil {
		return stategraph.GraphSpec{}, fmt.Errorf("parse yaml: %w", err)
	}
	return FromJSON(encoded)
}

// FromJSON decodes a graph in the JSON wire form.
func FromJSON(data []byte) (stategraph.GraphSpec, error) {
	var spec stategraph.GraphSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return stategraph.GraphSpec{}, fmt.Errorf("parse json: %w", err)
	}
	return spec, nil
}

// Find expands paths into the graph files LoadAll would read, in the same
// order.
func Find(paths ...string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			files = append(files, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("access %s: %w", path, err)
		}
		if !info.IsDir() {
			add(filepath.Clean(path))
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isGraphFile(p) {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func isGraphFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, known := range Extensions {
		if ext == known {
			return true
		}
	}
	return false
}
