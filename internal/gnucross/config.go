package gnucross

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// ConfigFileName is looked up in the tree root unless GNUCROSS_CONFIG points elsewhere.
const ConfigFileName = "gnucross.conf"

// Config struct
type Config struct {
	Values map[string]string
}

// loadConfig reads a KEY=VALUE file and merges environment overrides.
// A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	mergeEnvOverrides(cfg)
	return cfg, nil
}

// Merge GNUCROSS_* and R2_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "GNUCROSS_") || strings.HasPrefix(env, "R2_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

// LoadConfigForRoot loads the configuration that applies to a tree rooted
// at root (empty means GNUCROSS_ROOT, then the working directory).
func LoadConfigForRoot(root string) (*Config, error) {
	if root == "" {
		root = os.Getenv("GNUCROSS_ROOT")
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	path := os.Getenv("GNUCROSS_CONFIG")
	if path == "" {
		path = filepath.Join(root, ConfigFileName)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.Values["GNUCROSS_ROOT"] = root
	if cfg.Values["GNUCROSS_DEBUG"] == "1" {
		Debug = true
	}
	debugf("=> config %s, root %s\n", path, root)
	return cfg, nil
}

// Get returns the value for key or def when unset.
func (c *Config) Get(key, def string) string {
	if v := c.Values[key]; v != "" {
		return v
	}
	return def
}

// Jobs is the make parallelism factor, defaulting to one more than the CPU count.
func (c *Config) Jobs() int {
	if n, err := strconv.Atoi(c.Values["GNUCROSS_JOBS"]); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU() + 1
}

// Layout returns the directory layout of the configured root.
func (c *Config) Layout() Layout {
	return Layout{Root: c.Values["GNUCROSS_ROOT"]}
}
