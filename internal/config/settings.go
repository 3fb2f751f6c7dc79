package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Setting keys
const (
	KeyClusterAlias    = "cluster.alias"
	KeyClusterHostname = "cluster.hostname"
	KeyClusterPort     = "cluster.port"
	KeyClusterDomain   = "cluster.domain"
	KeySSHConfig       = "ssh_config"
	KeyLang            = "lang"
	KeyUsername        = "username"
)

const (
	settingsDirName  = "milatools"
	settingsFileName = "config"
	settingsType     = "yaml"
	envPrefix        = "MILATOOLS"
)

// cluster.port is read from MILATOOLS_CLUSTER_PORT.
var envKeyReplacer = strings.NewReplacer(".", "_")

// Settings holds the user preferences that outlive a single command.
type Settings struct {
	ClusterAlias    string
	ClusterHostname string
	ClusterPort     int
	ClusterDomain   string
	SSHConfigPath   string
	Lang            string
	Username        string

	// File is the settings file that was read, empty when none was found.
	File string
}

// NewViper returns a viper instance with defaults registered and the
// MILATOOLS_* environment bound. Priority, highest first: flags bound by
// the caller, environment, settings file, defaults.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(settingsFileName)
	v.SetConfigType(settingsType)

	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, settingsDirName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".milatools"))
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyClusterAlias, ClusterAlias)
	v.SetDefault(KeyClusterHostname, LoginHostname)
	v.SetDefault(KeyClusterPort, LoginPort)
	v.SetDefault(KeyClusterDomain, NodeDomain)
	v.SetDefault(KeySSHConfig, DefaultSSHConfigPath())
	v.SetDefault(KeyLang, "")
	v.SetDefault(KeyUsername, "")
}

// Load reads the settings file, if any, and returns the merged settings.
// A missing file is not an error.
func Load(v *viper.Viper) (*Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading settings file: %w", err)
		}
	}

	s := &Settings{
		ClusterAlias:    v.GetString(KeyClusterAlias),
		ClusterHostname: v.GetString(KeyClusterHostname),
		ClusterPort:     v.GetInt(KeyClusterPort),
		ClusterDomain:   v.GetString(KeyClusterDomain),
		SSHConfigPath:   ExpandHome(v.GetString(KeySSHConfig)),
		Lang:            v.GetString(KeyLang),
		Username:        v.GetString(KeyUsername),
		File:            v.ConfigFileUsed(),
	}
	return s, nil
}

// SettingsPath returns where Save writes the settings file.
func SettingsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", herr
		}
		return filepath.Join(home, ".milatools", settingsFileName+"."+settingsType), nil
	}
	return filepath.Join(dir, settingsDirName, settingsFileName+"."+settingsType), nil
}

// Save writes the current values of v to path, creating the directory.
func Save(v *viper.Viper, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), SecureDirectoryPermissions); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// DefaultSSHConfigPath returns ~/.ssh/config.
func DefaultSSHConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(SSHConfigDirName, SSHConfigFileName)
	}
	return filepath.Join(home, SSHConfigDirName, SSHConfigFileName)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !hasHomePrefix(path) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

func hasHomePrefix(path string) bool {
	return len(path) >= 2 && path[0] == '~' && (path[1] == '/' || path[1] == filepath.Separator)
}
