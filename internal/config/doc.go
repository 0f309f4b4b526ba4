// Package config loads web server settings from YAML or JSON files.
//
// The format is chosen by file extension (.yaml, .yml or .json):
//
//	server:
//	  addr: 127.0.0.1:7878
//	  root: public
//	  max_requests: 0
//	  sleep_delay: 5s
//	  read_timeout: 10s
//	pool:
//	  workers: 4
//	  panic_policy: exit   # or respawn
//	admin:
//	  enabled: true
//	  addr: 127.0.0.1:9090
//	log:
//	  level: info
//
// Validate checks ranges, and ToRuntime fills defaults and parses durations,
// levels and policies into the types the other packages take.
package config
