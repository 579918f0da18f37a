// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files, a
// .env file, and the environment. Each file in the directory represents
// one secret: the filename is the key name and the file contents
// (trimmed) are the value.
//
// Supported key files: firecrawl-api-key, serper-api-key, openai-api-key.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Key file names.
const (
	KeyFirecrawl = "firecrawl-api-key"
	KeySerper    = "serper-api-key"
	KeyOpenAI    = "openai-api-key"
)

// envVars maps each key file to the environment variable that overrides it.
var envVars = map[string]string{
	KeyFirecrawl: "FIRECRAWL_API_KEY",
	KeySerper:    "SERPER_API_KEY",
	KeyOpenAI:    "OPENAI_API_KEY",
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Credentials are the API keys the research pipeline uses.
type Credentials struct {
	Firecrawl string
	Serper    string
	OpenAI    string
}

// Resolve loads envFile into the environment (without overriding variables
// already set), then reads dir. An environment variable wins over the
// matching key file. A missing envFile is not an error.
func Resolve(dir, envFile string) (Credentials, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	files, err := Load(dir)
	if err != nil {
		return Credentials{}, err
	}

	lookup := func(key string) string {
		if v := strings.TrimSpace(os.Getenv(envVars[key])); v != "" {
			return v
		}
		return files[key]
	}
	return Credentials{
		Firecrawl: lookup(KeyFirecrawl),
		Serper:    lookup(KeySerper),
		OpenAI:    lookup(KeyOpenAI),
	}, nil
}

// Validate reports the required keys that are missing. Serper is optional;
// without it the fallback search tier is disabled.
func (c Credentials) Validate() error {
	var missing []string
	if c.Firecrawl == "" {
		missing = append(missing, KeyFirecrawl+" ("+envVars[KeyFirecrawl]+")")
	}
	if c.OpenAI == "" {
		missing = append(missing, KeyOpenAI+" ("+envVars[KeyOpenAI]+")")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Status describes a credential without revealing it.
func Status(v string) string {
	if v == "" {
		return "not set"
	}
	return "set"
}
