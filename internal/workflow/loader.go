package workflow

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type configError struct {
	msg string
}

func (e *configError) Error() string { return e.msg }

func newConfigError(format string, args ...any) error {
	return &configError{msg: fmt.Sprintf(format, args...)}
}

// Loader reads workflow.yaml/.yml from a config directory and compiles it
// into a Snapshot.
type Loader struct {
	configDir string
}

// NewLoader builds a Loader rooted at configDir (AGENT_CONFIG_DIR).
func NewLoader(configDir string) *Loader {
	return &Loader{configDir: configDir}
}

// Load reads the workflow declaration, falling back to a built-in default
// snapshot if no config file is present under the Loader's directory.
func (l *Loader) Load() (*Snapshot, error) {
	path := l.findConfigFile()
	if path == "" {
		return compileSnapshot(defaultConfig())
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading workflow config %s: %w", path, err)
	}

	var raw RawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("parsing workflow config %s: %w", path, err)
	}
	return compileSnapshot(&raw)
}

func (l *Loader) findConfigFile() string {
	for _, name := range []string{"workflow.yaml", "workflow.yml"} {
		candidate := filepath.Join(l.configDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
