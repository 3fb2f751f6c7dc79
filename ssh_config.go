package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	milaerrors "github.com/mila-iqia/milatools/internal/errors"
	"github.com/mila-iqia/milatools/internal/security"
	"github.com/mila-iqia/milatools/internal/sshconfig"
)

// reportConfigError prints the detail of a rejected entry that its Error
// message leaves out.
func reportConfigError(w io.Writer, err error) {
	var dup *sshconfig.DuplicateDirectiveError
	if errors.As(err, &dup) {
		fmt.Fprintln(w, warningStyle.Render(dup.Detail()))
	}
}

// saveSSHConfig writes cfg and records the change in the audit log.
func (c *Config) saveSSHConfig(cfg *sshconfig.File, action, host, details string) error {
	err := cfg.Save()
	security.LogConfigChange(cfg.Path(), action, host, err == nil, details)
	if err != nil {
		return milaerrors.NewFileOperationError("write", cfg.Path(), err)
	}
	c.logger.Printf("%s %s in %s", action, host, cfg.Path())
	return nil
}

// Run validates the assignments and writes them into the Host stanza
func (c *ConfigAddCommand) Run(ctx context.Context) error {
	if err := security.ValidateHostPattern(c.Host); err != nil {
		return milaerrors.NewConfigValidationError(c.Host, err)
	}
	pairs, err := sshconfig.ParseAssignments(c.Assignments)
	if err != nil {
		return milaerrors.NewUserInputError("assignments", err)
	}

	cfg, err := c.readSSHConfig()
	if err != nil {
		return milaerrors.NewFileOperationError("read", c.SSHConfigFile, err)
	}
	existed := cfg.Host(c.Host) != nil

	entry, err := sshconfig.AddHost(cfg, c.Host, pairs)
	if err != nil {
		reportConfigError(c.errOut, err)
		return milaerrors.NewConfigValidationError(c.Host, err)
	}

	details := strings.Join(entry.Keys(), ",")
	if err := c.saveSSHConfig(cfg, "add", c.Host, details); err != nil {
		return err
	}

	if existed {
		fmt.Fprintln(c.out, successStyle.Render(T("config_host_updated", c.Host)))
	} else {
		fmt.Fprintln(c.out, successStyle.Render(T("config_host_added", c.Host)))
	}
	fmt.Fprintln(c.out, cfg.HostString(c.Host))
	return nil
}

// Run prints the stanza as written, or its lowercased directives as YAML
func (c *ConfigShowCommand) Run(ctx context.Context) error {
	cfg, err := c.readSSHConfig()
	if err != nil {
		return milaerrors.NewFileOperationError("read", c.SSHConfigFile, err)
	}

	entry := sshconfig.ReadHost(cfg, c.Host)
	if entry == nil {
		return milaerrors.NewConfigurationError(c.Host, fmt.Errorf("%w: %s", sshconfig.ErrHostNotFound, c.Host))
	}

	if c.YAML {
		data, err := yaml.Marshal(map[string]string(entry))
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", c.Host, err)
		}
		_, err = c.out.Write(data)
		return err
	}

	fmt.Fprintln(c.out, cfg.HostString(c.Host))
	return nil
}

// Run prints the value ssh would use for the directive on the host
func (c *ConfigGetCommand) Run(ctx context.Context) error {
	resolver, err := sshconfig.LoadResolver(c.SSHConfigFile)
	if err != nil {
		return milaerrors.NewFileOperationError("read", c.SSHConfigFile, err)
	}
	value, err := resolver.Get(c.Host, c.Key)
	if err != nil {
		return milaerrors.NewConfigValidationError(c.Host, err)
	}
	fmt.Fprintln(c.out, value)
	return nil
}

// Run deletes the Host stanza after confirmation
func (c *ConfigRemoveCommand) Run(ctx context.Context) error {
	cfg, err := c.readSSHConfig()
	if err != nil {
		return milaerrors.NewFileOperationError("read", c.SSHConfigFile, err)
	}
	if cfg.Host(c.Host) == nil {
		return milaerrors.NewConfigurationError(c.Host, fmt.Errorf("%w: %s", sshconfig.ErrHostNotFound, c.Host))
	}

	fmt.Fprintln(c.out, cfg.HostString(c.Host))
	ok, err := c.confirm(T("config_confirm_remove", c.Host))
	if err != nil {
		return milaerrors.NewUserInputError("confirm", err)
	}
	if !ok {
		fmt.Fprintln(c.out, infoStyle.Render(T("cancelled")))
		return nil
	}

	if err := cfg.Remove(c.Host); err != nil {
		return milaerrors.NewConfigurationError(c.Host, err)
	}
	if err := c.saveSSHConfig(cfg, "remove", c.Host, ""); err != nil {
		return err
	}
	fmt.Fprintln(c.out, successStyle.Render(T("config_host_removed", c.Host)))
	return nil
}

// Run changes the Host pattern, keeping the directives
func (c *ConfigRenameCommand) Run(ctx context.Context) error {
	if err := security.ValidateHostPattern(c.NewHost); err != nil {
		return milaerrors.NewConfigValidationError(c.NewHost, err)
	}
	cfg, err := c.readSSHConfig()
	if err != nil {
		return milaerrors.NewFileOperationError("read", c.SSHConfigFile, err)
	}
	if err := cfg.Rename(c.OldHost, c.NewHost); err != nil {
		return milaerrors.NewConfigurationError(c.OldHost, err)
	}
	if err := c.saveSSHConfig(cfg, "rename", c.NewHost, "from "+c.OldHost); err != nil {
		return err
	}
	fmt.Fprintln(c.out, successStyle.Render(T("config_host_renamed", c.OldHost, c.NewHost)))
	return nil
}

// Run lists every directive with the kind of value it takes
func (c *ConfigKeysCommand) Run(ctx context.Context) error {
	directives := sshconfig.Directives()
	rows := make([][]string, 0, len(directives))
	for _, d := range directives {
		rows = append(rows, []string{d.Name, d.Kind.String(), strings.Join(d.Values, ", ")})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(primaryColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(T("keys_header_directive"), T("keys_header_kind"), T("keys_header_values")).
		Rows(rows...)

	fmt.Fprintln(c.out, t.Render())
	return nil
}

// configProblem is one finding of config check
type configProblem struct {
	host    string
	message string
}

// lintSSHConfig reports unknown directives and values that do not fit
// their directive, stanza by stanza. Match blocks and the global section
// are not inspected.
func lintSSHConfig(cfg *sshconfig.File) []configProblem {
	var problems []configProblem
	for _, host := range cfg.Hosts() {
		pairs := sshconfig.PairsFromMap(cfg.Host(host))
		invalid := sshconfig.FindInvalidKeys(pairs)
		if len(invalid) > 0 {
			err := &sshconfig.UnrecognizedDirectiveError{Keys: invalid}
			problems = append(problems, configProblem{host: host, message: err.Error()})
		}
		for _, kv := range pairs {
			if !sshconfig.IsRecognizedKey(kv.Key) {
				continue
			}
			if err := sshconfig.ValidateValue(kv.Key, kv.Value); err != nil {
				problems = append(problems, configProblem{host: host, message: err.Error()})
			}
		}
	}
	return problems
}

// Run lints the ssh config and fails when anything was found
func (c *ConfigCheckCommand) Run(ctx context.Context) error {
	cfg, err := c.readSSHConfig()
	if err != nil {
		return milaerrors.NewFileOperationError("read", c.SSHConfigFile, err)
	}

	problems := lintSSHConfig(cfg)
	if len(problems) == 0 {
		fmt.Fprintln(c.out, successStyle.Render(T("config_check_ok", c.SSHConfigFile)))
		return nil
	}

	for _, p := range problems {
		fmt.Fprintf(c.out, "%s %s\n", errorStyle.Render("Host "+p.host+":"), p.message)
	}
	return milaerrors.NewConfigValidationError(c.SSHConfigFile, errors.New(T("config_check_failed", len(problems))))
}
