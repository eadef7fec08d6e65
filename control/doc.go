// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics and the optional HTTP stats endpoint.
//
// Provides:
//   - Typed YAML configuration with defaults and per-mode validation
//   - A concurrent-safe metrics registry the loops publish into
//   - A gorilla/mux router exposing metric snapshots
package control
