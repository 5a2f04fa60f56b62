package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the configuration file name looked up in the
	// current directory.
	DefaultConfigFile = ".cjdnswalk.yaml"

	// XDGConfigFile is the configuration file name inside XDGConfigDir.
	XDGConfigFile = "config.yaml"

	// AdminFileName is the credentials file cjdns tools read from $HOME.
	AdminFileName = ".cjdnsadmin"

	defaultAdminPort = 11234
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the YAML configuration file.
type File struct {
	Admin struct {
		Address  string        `yaml:"address,omitempty"`
		Password string        `yaml:"password,omitempty"`
		Timeout  time.Duration `yaml:"timeout,omitempty"`
	} `yaml:"admin,omitempty"`

	Walk struct {
		// Bootstrap is a node name such as v20.0000.0000.0000.0013.<key>.k.
		Bootstrap     string        `yaml:"bootstrap,omitempty"`
		CycleTime     time.Duration `yaml:"cycleTime,omitempty"`
		InfoInterval  time.Duration `yaml:"infoInterval,omitempty"`
		RetryInterval time.Duration `yaml:"retryInterval,omitempty"`
		// MaxRetries is a pointer so an explicit 0 survives the overlay.
		MaxRetries *int `yaml:"maxRetries,omitempty"`
	} `yaml:"walk,omitempty"`

	// Output is the event log path.
	Output string `yaml:"output,omitempty"`
}

// AdminFile is the cjdns ~/.cjdnsadmin credentials file.
// It is JSON, which the YAML decoder reads as a flow mapping.
type AdminFile struct {
	Addr     string `yaml:"addr"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	Config   string `yaml:"config,omitempty"`
}

// Address returns the admin endpoint in host:port form, or "" when no
// host is set.
func (a *AdminFile) Address() string {
	if a.Addr == "" {
		return ""
	}
	port := a.Port
	if port == 0 {
		port = defaultAdminPort
	}
	return net.JoinHostPort(a.Addr, strconv.Itoa(port))
}

// LoadConfigFile loads settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// LoadAdminFile loads cjdns admin credentials.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadAdminFile(path string) (*AdminFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided credentials path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var af AdminFile
	if err := yaml.Unmarshal(data, &af); err != nil {
		return nil, err
	}
	return &af, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .cjdnswalk.yaml in the current directory
// 3. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	return findConfigFile(configPath, cwd, XDGConfigDir())
}

func findConfigFile(configPath, cwd, configDir string) string {
	if configPath != "" {
		if exists(configPath) {
			return configPath
		}
		return ""
	}
	if cwd != "" {
		if p := filepath.Join(cwd, DefaultConfigFile); exists(p) {
			return p
		}
	}
	if configDir != "" {
		if p := filepath.Join(configDir, XDGConfigFile); exists(p) {
			return p
		}
	}
	return ""
}

// FindAdminFile returns the path of ~/.cjdnsadmin, or "" if it is absent.
func FindAdminFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	if p := filepath.Join(home, AdminFileName); exists(p) {
		return p
	}
	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
