package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mila-iqia/milatools/internal/config"
)

// Style definitions using lipgloss
var (
	// Theme colors
	primaryColor = lipgloss.Color("#04B575")
	errorColor   = lipgloss.Color("#FF4B4B")
	warningColor = lipgloss.Color("#FFA500")
	infoColor    = lipgloss.Color("#3B82F6")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(primaryColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(infoColor)

	headerStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true).
			Underline(true)
)

// NewRootCmd creates the root command with Cobra/Fang integration
func NewRootCmd(cfg *Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           config.ClientName,
		Short:         T("root_short"),
		Long:          titleStyle.Render(config.ClientName) + " - " + T("root_long"),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfg.SSHConfigFile, "ssh-config", "F", "", T("flag_ssh_config_help"))
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, T("flag_verbose_help"))
	flags.StringVar(&cfg.Language, "lang", "", T("flag_lang_help"))
	flags.BoolVarP(&cfg.Yes, "yes", "y", false, T("flag_yes_help"))

	// flags override MILATOOLS_* and the settings file
	_ = cfg.v.BindPFlag(config.KeySSHConfig, flags.Lookup("ssh-config"))
	_ = cfg.v.BindPFlag(config.KeyLang, flags.Lookup("lang"))

	rootCmd.AddCommand(
		newInitCmd(cfg),
		newConfigCmd(cfg),
		newServeCmd(cfg),
		newOpenCmd(cfg, "docs", T("docs_short"), config.DocsURL, config.DocsSearchURL),
		newOpenCmd(cfg, "intranet", T("intranet_short"), config.IntranetURL, config.IntranetSearchURL),
		newVersionCmd(cfg),
	)

	return rootCmd
}

// newInitCmd creates the init subcommand
func newInitCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: T("init_short"),
		Long:  T("init_long"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initCmd := &InitCommand{Config: cfg}
			return initCmd.Run(cmd.Context())
		},
	}
}

// newConfigCmd creates the config command and its subcommands
func newConfigCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   T("config_short"),
		Long:    T("config_long"),
		Example: T("config_examples"),
	}

	var asYAML bool
	showCmd := &cobra.Command{
		Use:   "show HOST",
		Short: T("config_show_short"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &ConfigShowCommand{Config: cfg, Host: args[0], YAML: asYAML}
			return c.Run(cmd.Context())
		},
	}
	showCmd.Flags().BoolVar(&asYAML, "yaml", false, T("flag_yaml_help"))

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add HOST KEY=VALUE...",
			Short: T("config_add_short"),
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c := &ConfigAddCommand{Config: cfg, Host: args[0], Assignments: args[1:]}
				return c.Run(cmd.Context())
			},
		},
		showCmd,
		&cobra.Command{
			Use:   "get HOST KEY",
			Short: T("config_get_short"),
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c := &ConfigGetCommand{Config: cfg, Host: args[0], Key: args[1]}
				return c.Run(cmd.Context())
			},
		},
		&cobra.Command{
			Use:     "remove HOST",
			Aliases: []string{"rm"},
			Short:   T("config_remove_short"),
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c := &ConfigRemoveCommand{Config: cfg, Host: args[0]}
				return c.Run(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "rename OLD NEW",
			Short: T("config_rename_short"),
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c := &ConfigRenameCommand{Config: cfg, OldHost: args[0], NewHost: args[1]}
				return c.Run(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: T("config_keys_short"),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c := &ConfigKeysCommand{Config: cfg}
				return c.Run(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: T("config_check_short"),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c := &ConfigCheckCommand{Config: cfg}
				return c.Run(cmd.Context())
			},
		},
	)
	return cmd
}

// newServeCmd creates the serve command and its subcommands
func newServeCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: T("serve_short"),
	}

	var purge bool
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   T("serve_list_short"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &ServeListCommand{Config: cfg, Purge: purge}
			return c.Run(cmd.Context())
		},
	}
	listCmd.Flags().BoolVar(&purge, "purge", false, T("flag_purge_help"))

	var all bool
	killCmd := &cobra.Command{
		Use:   "kill [IDENTIFIER]",
		Short: T("serve_kill_short"),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &ServeKillCommand{Config: cfg, All: all}
			if len(args) > 0 {
				c.Identifier = args[0]
			}
			return c.Run(cmd.Context())
		},
	}
	killCmd.Flags().BoolVar(&all, "all", false, T("flag_all_help"))

	cmd.AddCommand(listCmd, killCmd)
	return cmd
}

// newOpenCmd creates the docs and intranet subcommands
func newOpenCmd(cfg *Config, name, short, baseURL, searchURL string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " [TERMS...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &OpenCommand{Config: cfg, BaseURL: baseURL, SearchURL: searchURL, Terms: args}
			return c.Run(cmd.Context())
		},
	}
}

// newVersionCmd creates the version subcommand
func newVersionCmd(cfg *Config) *cobra.Command {
	var short bool
	var commit bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: T("version_short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			versionCmd := &VersionCommand{
				Config: cfg,
				Short:  short,
				Commit: commit,
			}
			return versionCmd.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, T("flag_short_help"))
	cmd.Flags().BoolVarP(&commit, "commit", "c", false, T("flag_commit_help"))

	return cmd
}

// ExecuteWithFang runs the CLI with Fang enhancements
func ExecuteWithFang(ctx context.Context) error {
	// Initialize i18n early so help text is translated
	initI18nForCLI(os.Args)

	rootCmd := NewRootCmd(newConfig())
	return fang.Execute(ctx, rootCmd)
}
