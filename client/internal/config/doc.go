// Package config loads the subscriber-side configuration from the `client:`
// section of config.yaml (the `server:` key is ignored by the client binary).
//
// Load(path) applies defaults before unmarshalling, then validates. Secrets
// are never stored in the file itself — the API key is resolved from the
// environment variable named by auth.key_env.
package config
