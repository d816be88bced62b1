/*
Package config provides type-safe extraction from map[string]any.

# Overview

Node and condition parameters in a graph definition are opaque maps. config
wraps such a map and provides typed accessor methods that return a default
when a key is missing or holds the wrong type, so node functions read their
parameters without assertion chains.

# Basic Usage

	params := config.New(map[string]any{
	    "input_key":  "score",
	    "threshold":  79,
	    "force":      true,
	})

	key := params.String("input_key", "")       // "score"
	threshold := params.Float("threshold", 0)   // 79
	force := params.Bool("force", false)        // true
	missing := params.Missing("key", "value")   // ["key", "value"]

# Type Coercion

Every Go numeric type is accepted by Float and Int. Int rejects values with a
fractional part. Duration accepts a time.ParseDuration string, a number of
seconds, or a time.Duration.

# Files and Settings

FromFile loads YAML or JSON. YAML integers are widened to float64 so both
formats yield the same values. LoadSettings reads the service settings
(max_visits, workers, retention, sweep_interval, checkpoint_path, log_level,
log_format) and validates them:

	s, err := config.LoadSettings("stategraph.yaml")
	if err != nil {
	    log.Fatal(err)
	}

# Thread Safety

Config is safe for concurrent reads. New does not copy its input; Clone
produces an independent deep copy, which the graph compiler uses so that
compiled definitions never observe later changes to caller maps.
*/
package config
