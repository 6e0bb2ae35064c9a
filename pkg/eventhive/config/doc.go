/*
Package config loads the skull's settings.

# Overview

Config wraps a decoded YAML or JSON document and provides typed accessors
that fall back to a default on missing keys or type mismatches. Keys may be
dotted paths into nested sections:

	cfg, err := config.FromFile("skull.yaml")
	mode := cfg.String("tts.mode", "test")
	wait := cfg.Duration("boot_split_wait", 5*time.Second)

Settings is the typed view used by the rest of the process. Load layers
defaults, an optional file and the environment, then validates:

	settings, err := config.Load(path)
	var modeErr *config.ModeError
	if errors.As(err, &modeErr) {
	    // unknown backend, refuse to start
	}

# Environment

OPENAI_API_KEY overrides openai.api_key. SKULL_CONFIG names the config file
when no path is given.

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
