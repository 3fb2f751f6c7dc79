package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mila-iqia/milatools/internal/config"
	milaerrors "github.com/mila-iqia/milatools/internal/errors"
	"github.com/mila-iqia/milatools/internal/local"
	"github.com/mila-iqia/milatools/internal/security"
	"github.com/mila-iqia/milatools/internal/slurm"
	"github.com/mila-iqia/milatools/internal/sshconfig"
)

// hostStanza is a Host block init offers to write
type hostStanza struct {
	host  string
	pairs sshconfig.Pairs
}

// clusterStanzas returns the login alias, the mila-cpu and mila-gpu
// allocation aliases and the compute-node wildcard, in the order they
// are written.
func clusterStanzas(s *config.Settings, username string) []hostStanza {
	port := strconv.Itoa(s.ClusterPort)
	compute := fmt.Sprintf("*.%s !*%s", s.ClusterDomain, s.ClusterHostname)

	allocation := func(salloc, srun []string) sshconfig.Pairs {
		return sshconfig.Pairs{
			{Key: "User", Value: username},
			{Key: "Port", Value: port},
			{Key: "ForwardAgent", Value: "yes"},
			{Key: "StrictHostKeyChecking", Value: "no"},
			{Key: "LogLevel", Value: "ERROR"},
			{Key: "UserKnownHostsFile", Value: "/dev/null"},
			{Key: "RequestTTY", Value: "force"},
			{Key: "ConnectTimeout", Value: strconv.Itoa(config.ComputeConnectTimeout)},
			{Key: "ProxyCommand", Value: slurm.SSHProxyCommand(s.ClusterAlias, salloc...)},
			{Key: "RemoteCommand", Value: slurm.SrunRemoteCommand(srun...)},
		}
	}

	return []hostStanza{
		{
			host: s.ClusterAlias,
			pairs: sshconfig.Pairs{
				{Key: "HostName", Value: s.ClusterHostname},
				{Key: "User", Value: username},
				{Key: "PreferredAuthentications", Value: "publickey,keyboard-interactive"},
				{Key: "Port", Value: port},
				{Key: "ServerAliveInterval", Value: strconv.Itoa(config.ServerAliveInterval)},
				{Key: "ServerAliveCountMax", Value: strconv.Itoa(config.ServerAliveCountMax)},
			},
		},
		{host: s.ClusterAlias + "-cpu", pairs: allocation(sallocCPUFlags, srunCPUFlags)},
		{host: s.ClusterAlias + "-gpu", pairs: allocation(sallocGPUFlags, srunGPUFlags)},
		{
			host: compute,
			pairs: sshconfig.Pairs{
				{Key: "HostName", Value: "%h"},
				{Key: "User", Value: username},
				{Key: "ProxyJump", Value: s.ClusterAlias},
			},
		},
	}
}

// previewStanza renders st as it would appear in the ssh config.
func previewStanza(st hostStanza) (string, error) {
	scratch, err := sshconfig.Parse(strings.NewReader(""))
	if err != nil {
		return "", err
	}
	if _, err := sshconfig.AddHost(scratch, st.host, st.pairs); err != nil {
		return "", err
	}
	return scratch.HostString(st.host), nil
}

// Run writes the cluster stanzas that are missing from the ssh config,
// then checks that the login node accepts the user's key.
func (c *InitCommand) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, titleStyle.Render(T("init_checking", c.SSHConfigFile)))

	cfg, err := c.readSSHConfig()
	if err != nil {
		return milaerrors.NewFileOperationError("read", c.SSHConfigFile, err)
	}

	username, err := c.username(cfg)
	if err != nil {
		return err
	}

	added := 0
	for _, st := range clusterStanzas(c.settings, username) {
		if cfg.Host(st.host) != nil {
			fmt.Fprintln(c.out, infoStyle.Render(T("init_host_present", st.host)))
			continue
		}

		preview, err := previewStanza(st)
		if err != nil {
			return milaerrors.NewConfigValidationError(st.host, err)
		}
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, preview)
		ok, err := c.confirm(T("init_confirm_add", st.host))
		if err != nil {
			return milaerrors.NewUserInputError("confirm", err)
		}
		if !ok {
			fmt.Fprintln(c.out, warningStyle.Render(T("init_host_skipped", st.host)))
			continue
		}

		if _, err := sshconfig.AddHost(cfg, st.host, st.pairs); err != nil {
			return milaerrors.NewConfigValidationError(st.host, err)
		}
		added++
		c.logger.Printf("Added Host %s to %s", st.host, c.SSHConfigFile)
	}

	if added > 0 {
		err := cfg.Save()
		security.LogConfigChange(c.SSHConfigFile, "init", c.settings.ClusterAlias, err == nil, fmt.Sprintf("%d stanzas added", added))
		if err != nil {
			return milaerrors.NewFileOperationError("write", c.SSHConfigFile, err)
		}
		fmt.Fprintln(c.out, successStyle.Render(T("init_config_written", c.SSHConfigFile)))
	} else {
		fmt.Fprintln(c.out, infoStyle.Render(T("init_nothing_to_do")))
	}

	if err := c.saveUsername(username); err != nil {
		fmt.Fprintln(c.errOut, warningStyle.Render(T("init_settings_not_saved", err)))
	}

	return c.checkPasswordless(ctx)
}

// username returns the cluster username from the settings, then from the
// login stanza, and asks for it otherwise.
func (c *InitCommand) username(cfg *sshconfig.File) (string, error) {
	if c.settings.Username != "" {
		return c.settings.Username, nil
	}
	if entry := sshconfig.ReadHost(cfg, c.settings.ClusterAlias); entry != nil && entry["user"] != "" {
		return entry["user"], nil
	}

	username, err := c.prompt.Input(T("init_username_prompt"), func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			return errors.New(T("init_username_required"))
		}
		return security.ValidateSSHUser(s)
	})
	if err != nil {
		return "", milaerrors.NewUserInputError("username", err)
	}
	if err := security.ValidateSSHUser(username); err != nil {
		return "", milaerrors.NewUserInputError("username", err)
	}
	return username, nil
}

// saveUsername records username in the settings file when it changed.
func (c *InitCommand) saveUsername(username string) error {
	if c.settings.Username == username {
		return nil
	}
	c.v.Set(config.KeyUsername, username)
	if err := config.Save(c.v, c.settingsFile); err != nil {
		return err
	}
	c.settings.Username = username
	c.logger.Printf("Saved username to %s", c.settingsFile)
	return nil
}

// checkPasswordless probes the login alias with public key authentication
// only and offers to create and install a key when that fails.
func (c *InitCommand) checkPasswordless(ctx context.Context) error {
	alias := c.settings.ClusterAlias
	fmt.Fprintln(c.out, titleStyle.Render(T("init_checking_access", alias)))

	probeCtx, cancel := context.WithTimeout(ctx, passwordlessCheckTimeout)
	ok, err := c.runner.CheckPasswordless(probeCtx, alias)
	cancel()
	if err != nil {
		var notFound *local.CommandNotFoundError
		if errors.As(err, &notFound) {
			fmt.Fprintln(c.errOut, warningStyle.Render(T("init_ssh_missing")))
			return nil
		}
		return milaerrors.NewSSHConnectionError(alias, err)
	}
	if ok {
		fmt.Fprintln(c.out, successStyle.Render(T("init_passwordless_ok", alias)))
		return nil
	}

	fmt.Fprintln(c.out, warningStyle.Render(T("init_passwordless_missing", alias)))
	setup, err := c.confirm(T("init_confirm_copy_id"))
	if err != nil {
		return milaerrors.NewUserInputError("confirm", err)
	}
	if !setup {
		return nil
	}

	key := filepath.Join(config.ExpandHome("~"), config.SSHConfigDirName, config.ModernKeyTypes[0])
	if _, err := os.Stat(key); errors.Is(err, fs.ErrNotExist) {
		if _, err := c.runner.Run(ctx, local.Cmd("ssh-keygen", "-t", "ed25519", "-f", key, "-N", ""), local.Options{}); err != nil {
			return milaerrors.NewProcessError("ssh-keygen", err)
		}
	}
	if _, err := c.runner.Run(ctx, local.Cmd("ssh-copy-id", alias), local.Options{}); err != nil {
		return milaerrors.NewProcessError("ssh-copy-id", err)
	}
	fmt.Fprintln(c.out, successStyle.Render(T("init_key_installed", alias)))
	return nil
}
