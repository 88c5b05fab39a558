// Package config handles configuration loading for aegis-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${AEGIS_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	hitl:
//	  request_ttl: "10m"
//	  short_timeout: "30s"
//	  long_timeout: "90s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # API, events stream, health checks
//
// Database:
//
//	database:
//	  path: "/var/lib/aegis/gateway.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${AEGIS_JWT_SECRET}"   # API auth disabled when unset
//
// Resilience defaults applied to every registered endpoint:
//
//	gateway:
//	  rate_limit_rps: 5
//	  burst_size: 10
//	  failure_threshold: 5
//	  recovery_timeout: "60s"
//
// Human-in-the-loop timing:
//
//	hitl:
//	  request_ttl: "10m"
//	  short_timeout: "30s"
//	  long_timeout: "90s"
//	  sweep_interval: "1m"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/aegis/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
