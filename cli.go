package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/spf13/viper"

	"github.com/mila-iqia/milatools/internal/config"
	milaerrors "github.com/mila-iqia/milatools/internal/errors"
	"github.com/mila-iqia/milatools/internal/local"
	"github.com/mila-iqia/milatools/internal/remote"
	"github.com/mila-iqia/milatools/internal/security"
	"github.com/mila-iqia/milatools/internal/sshconfig"
)

// Config holds the global options shared by every command.
type Config struct {
	SSHConfigFile string
	Verbose       bool
	Language      string
	Yes           bool

	v        *viper.Viper
	settings *config.Settings
	logger   *log.Logger

	out    io.Writer
	errOut io.Writer

	// settingsFile is where init records the username
	settingsFile string

	// replaced in tests
	prompt  prompter
	runner  localRunner
	connect func(ctx context.Context) (remoteShell, error)
}

// newConfig returns a Config writing to stdout and stderr.
func newConfig() *Config {
	return &Config{
		v:      config.NewViper(),
		out:    os.Stdout,
		errOut: os.Stderr,
		logger: log.New(io.Discard, "", 0),
	}
}

// load merges settings from viper and wires the collaborators that were
// not injected.
func (c *Config) load() error {
	settings, err := config.Load(c.v)
	if err != nil {
		return err
	}
	if err := security.ValidatePort(c.v.GetString(config.KeyClusterPort)); err != nil {
		return milaerrors.NewConfigurationError(config.KeyClusterPort, err)
	}
	c.settings = settings
	if c.SSHConfigFile == "" {
		c.SSHConfigFile = settings.SSHConfigPath
	}
	c.SSHConfigFile = config.ExpandHome(c.SSHConfigFile)
	if c.Language == "" {
		c.Language = settings.Lang
	}
	initI18n(c.Language)

	c.logger = getLogger(c.Verbose)
	if c.runner == nil {
		c.runner = local.NewRunner(c.out, c.logger)
	}
	if c.prompt == nil {
		c.prompt = huhPrompter{}
	}
	if c.connect == nil {
		c.connect = c.dialCluster
	}
	if c.settingsFile == "" {
		if c.settingsFile, err = config.SettingsPath(); err != nil {
			return err
		}
	}
	c.logger.Printf("Using ssh config %s", c.SSHConfigFile)
	if settings.File != "" {
		c.logger.Printf("Loaded settings from %s", settings.File)
	}
	return nil
}

// confirm asks question unless --yes was given.
func (c *Config) confirm(question string) (bool, error) {
	if c.Yes {
		return true, nil
	}
	return c.prompt.Confirm(question)
}

// localRunner is the part of local.Runner the commands use.
type localRunner interface {
	Run(ctx context.Context, cmd local.Command, opts local.Options) (*local.Result, error)
	CheckPasswordless(ctx context.Context, host string) (bool, error)
}

// remoteShell is the part of a remote session the commands use.
type remoteShell interface {
	Run(ctx context.Context, cmd string, opts remote.RunOptions) (*remote.Result, error)
	GetOutput(ctx context.Context, cmd string) (string, error)
	GetLines(ctx context.Context, cmd string) ([]string, error)
	Close() error
}

// dialCluster opens a session to the login alias as the ssh config
// describes it.
func (c *Config) dialCluster(ctx context.Context) (remoteShell, error) {
	alias := c.settings.ClusterAlias
	target, err := remote.ResolveTarget(c.SSHConfigFile, alias)
	if err != nil {
		return nil, milaerrors.NewConfigurationError(alias, err)
	}
	sess, err := remote.Dial(ctx, target, remote.DialOptions{
		Prompter: remote.TerminalPrompter{},
		Out:      c.out,
		Warn:     c.errOut,
		Logger:   c.logger,
	})
	if err != nil {
		// auth and host key failures are already classified
		if milaerrors.CodeOf(err) == milaerrors.ErrCodeUnknown {
			err = milaerrors.NewSSHConnectionError(alias, err)
		}
		return nil, err
	}
	return sess, nil
}

// readSSHConfig reads the user's ssh config; a missing file is empty.
func (c *Config) readSSHConfig() (*sshconfig.File, error) {
	return sshconfig.Read(c.SSHConfigFile)
}

// InitCommand sets up the ssh config for the cluster
type InitCommand struct {
	*Config
}

// ConfigAddCommand adds or updates a Host stanza
type ConfigAddCommand struct {
	*Config
	Host        string
	Assignments []string
}

// ConfigShowCommand prints a Host stanza
type ConfigShowCommand struct {
	*Config
	Host string
	YAML bool
}

// ConfigGetCommand prints the effective value of a directive
type ConfigGetCommand struct {
	*Config
	Host string
	Key  string
}

// ConfigRemoveCommand deletes a Host stanza
type ConfigRemoveCommand struct {
	*Config
	Host string
}

// ConfigRenameCommand changes the pattern of a Host stanza
type ConfigRenameCommand struct {
	*Config
	OldHost string
	NewHost string
}

// ConfigKeysCommand lists the directives that can be written
type ConfigKeysCommand struct {
	*Config
}

// ConfigCheckCommand reports unknown directives and malformed values
type ConfigCheckCommand struct {
	*Config
}

// ServeListCommand lists persistent servers on the cluster
type ServeListCommand struct {
	*Config
	Purge bool
}

// ServeKillCommand stops persistent servers
type ServeKillCommand struct {
	*Config
	Identifier string
	All        bool
}

// OpenCommand opens the documentation or the intranet in a browser
type OpenCommand struct {
	*Config
	BaseURL   string
	SearchURL string
	Terms     []string
}

// VersionCommand shows version information
type VersionCommand struct {
	*Config
	Short  bool
	Commit bool
}

// Run executes the version command
func (c *VersionCommand) Run(ctx context.Context) error {
	return showVersion(c.out, c.Short, c.Commit)
}

func getLogger(verbose bool) *log.Logger {
	if verbose {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

func showVersion(w io.Writer, short, commit bool) error {
	if short {
		fmt.Fprintln(w, version)
		return nil
	}

	fmt.Fprintf(w, "%s %s\n", config.ClientName, version)
	if commit {
		fmt.Fprintf(w, "Commit: %s\n", config.GitCommit)
		fmt.Fprintf(w, "Built: %s\n", config.BuildTime)
	}
	fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return nil
}
