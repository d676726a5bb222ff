// Package config loads the SSE test server configuration from YAML.
//
// The file is optional: Default returns a configuration equivalent to an empty
// file, and command-line flags are applied on top of whichever is used.
//
// Example:
//
//	host: 127.0.0.1
//	port: 5555
//	events:
//	  default_close_after_ms: 5000
//	  tick_interval: 1s
//	not_found:
//	  log_dir: ./unmatched
//
// not_found.body_filter takes a jsonfilter-go document that is matched
// against the request body of unmatched requests.
package config
