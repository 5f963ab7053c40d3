// Package config provides configuration loading for homewatch.
//
// Configuration is resolved in three layers, later layers winning:
//
//  1. Built-in defaults (defaultConfig)
//  2. YAML file (config.yaml)
//  3. Environment variables (HOMEWATCH_SECTION_KEY)
//
// Secrets such as the hub access token should come from the environment
// (HOMEWATCH_HUB_TOKEN) rather than the YAML file.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	url := cfg.Hub.WebSocketURL()
package config
