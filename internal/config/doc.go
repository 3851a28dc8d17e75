// Package config handles configuration loading for the chat client.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Every field has a default, so a missing file is not an error for
// the binaries: they fall back to Default().
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from CHAT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/chat/client.yaml
//  3. ~/.config/chat/client.yaml
//
// A path ending in .toml is decoded as TOML; anything else as YAML.
//
// # Environment Variable Expansion
//
//	server:
//	  api_url: "${CHAT_API_URL}"
//
// # Configuration Sections
//
//	mode: "production"            # development points at localhost:5000
//
//	server:
//	  api_url: "https://chat-backend-h7p4.onrender.com/api"
//	  push_url: ""                # derived: wss://<host>/ws
//
//	http:
//	  timeout: "15s"
//
//	push:
//	  handshake_timeout: "10s"
//	  ping_interval: "25s"
//
//	storage:
//	  driver: "sqlite"            # sqlite, pebble, memory
//	  path: "~/.local/share/chat/session.db"
//
//	dedupe:
//	  ttl: "10m"
//	  max_size: 10000
//
//	logging:
//	  level: "info"               # debug, info, warn, error
//	  format: "text"              # text, json
package config
