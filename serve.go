package main

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/charmbracelet/lipgloss"

	"github.com/mila-iqia/milatools/internal/config"
	milaerrors "github.com/mila-iqia/milatools/internal/errors"
	"github.com/mila-iqia/milatools/internal/remote"
	"github.com/mila-iqia/milatools/internal/security"
	"github.com/mila-iqia/milatools/internal/slurm"
)

var (
	serverAliveStyle   = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	serverPendingStyle = lipgloss.NewStyle().Foreground(warningColor)
)

// Keys a running server must have written to its control file
var requiredServerKeys = []string{"node_name", "to_forward"}

// controlFile is the path of a server's control file relative to $HOME.
func controlFile(id string) string {
	return path.Join(config.ControlDir, id)
}

// validateServerID rejects identifiers that would escape the control
// directory.
func validateServerID(id string) error {
	if id == "" || id == "." || id == ".." || path.Base(id) != id {
		return fmt.Errorf("invalid server identifier %q", id)
	}
	return nil
}

// readServerInfo reads and parses the control file of id.
func readServerInfo(ctx context.Context, sh remoteShell, id string) (slurm.ServerInfo, error) {
	if err := validateServerID(id); err != nil {
		return nil, err
	}
	out, err := sh.GetOutput(ctx, "cat "+security.ShellQuote(controlFile(id)))
	if err != nil {
		return nil, err
	}
	return slurm.ParseServerInfo(out), nil
}

// jobState asks squeue for the state of jobID. An empty or malformed
// jobID, or a job squeue no longer knows, reads as gone.
func jobState(ctx context.Context, sh remoteShell, jobID string) slurm.JobState {
	if slurm.ValidateJobID(jobID) != nil {
		return slurm.StateGone
	}
	res, err := sh.Run(ctx, slurm.SqueueState(jobID).String(), remote.RunOptions{Hide: true, Warn: true})
	if err != nil || res.ExitCode != 0 {
		return slurm.StateGone
	}
	return slurm.ParseState(res.Stdout)
}

// removeServer cancels jobID, when set, and deletes the control file of id.
func removeServer(ctx context.Context, sh remoteShell, id, jobID string) error {
	if err := validateServerID(id); err != nil {
		return err
	}
	if jobID != "" {
		if err := slurm.ValidateJobID(jobID); err != nil {
			return milaerrors.NewSchedulerError("scancel", err)
		}
		if _, err := sh.Run(ctx, slurm.Scancel(jobID).String(), remote.RunOptions{}); err != nil {
			return milaerrors.NewSchedulerError("scancel", err)
		}
	}
	if _, err := sh.Run(ctx, "rm "+security.ShellQuote(controlFile(id)), remote.RunOptions{}); err != nil {
		return milaerrors.NewRemoteCommandError(config.ClusterAlias, "rm", err)
	}
	return nil
}

// listServerIDs returns the names of the control files, creating the
// directory first.
func listServerIDs(ctx context.Context, sh remoteShell) ([]string, error) {
	if _, err := sh.Run(ctx, "mkdir -p ~/"+config.ControlDir, remote.RunOptions{Hide: true}); err != nil {
		return nil, err
	}
	return sh.GetLines(ctx, "ls "+config.ControlDir)
}

// purgeEntry is a control file to delete and the job to cancel with it
type purgeEntry struct {
	id    string
	jobID string
}

// Run prints every persistent server with its state and optionally
// purges the dead ones
func (c *ServeListCommand) Run(ctx context.Context) error {
	sh, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer sh.Close()

	ctx, cancel := context.WithTimeout(ctx, remoteCommandTimeout)
	defer cancel()

	ids, err := listServerIDs(ctx, sh)
	if err != nil {
		return milaerrors.NewRemoteCommandError(c.settings.ClusterAlias, "ls", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(c.out, infoStyle.Render(T("serve_none")))
		return nil
	}

	var toPurge []purgeEntry
	for _, id := range ids {
		info, err := readServerInfo(ctx, sh, id)
		if err != nil {
			fmt.Fprintln(c.errOut, warningStyle.Render(T("serve_unreadable", id, err)))
			continue
		}
		jobID := info["jobid"]
		program := info["program"]
		if program == "" {
			program = unknownProgram
		}
		delete(info, "program")

		switch state := jobState(ctx, sh, jobID); state {
		case slurm.StateRunning:
			if missing := missingKeys(info); len(missing) > 0 {
				fmt.Fprintln(c.out, errorStyle.Render(fmt.Sprintf("%s (%s, MISSING INFO)", id, program)))
				toPurge = append(toPurge, purgeEntry{id: id, jobID: jobID})
			} else {
				fmt.Fprintln(c.out, serverAliveStyle.Render(fmt.Sprintf("%s (%s)", id, program)))
			}
		case slurm.StatePending:
			fmt.Fprintln(c.out, serverPendingStyle.Render(fmt.Sprintf("%s (%s, %s)", id, program, state)))
		default:
			fmt.Fprintln(c.out, errorStyle.Render(fmt.Sprintf("%s (%s, DEAD)", id, program)))
			toPurge = append(toPurge, purgeEntry{id: id})
		}
		for _, k := range info.Keys() {
			fmt.Fprintf(c.out, "    %-20s : %s\n", k, info[k])
		}
	}

	if !c.Purge {
		return nil
	}
	for _, p := range toPurge {
		if err := removeServer(ctx, sh, p.id, p.jobID); err != nil {
			return err
		}
	}
	return nil
}

// missingKeys returns the required keys info lacks.
func missingKeys(info slurm.ServerInfo) []string {
	var missing []string
	for _, k := range requiredServerKeys {
		if _, ok := info[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// Run cancels the job of one server, or of all of them, and removes the
// control files
func (c *ServeKillCommand) Run(ctx context.Context) error {
	if !c.All && c.Identifier == "" {
		return milaerrors.NewUserInputError("serve kill", errors.New(T("serve_kill_needs_id")))
	}
	if c.Identifier != "" {
		if err := validateServerID(c.Identifier); err != nil {
			return milaerrors.NewUserInputError("serve kill", err)
		}
	}

	sh, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer sh.Close()

	ctx, cancel := context.WithTimeout(ctx, remoteCommandTimeout)
	defer cancel()

	ids := []string{c.Identifier}
	if c.All {
		if ids, err = listServerIDs(ctx, sh); err != nil {
			return milaerrors.NewRemoteCommandError(c.settings.ClusterAlias, "ls", err)
		}
	}

	for _, id := range ids {
		info, err := readServerInfo(ctx, sh, id)
		if err != nil {
			return milaerrors.NewRemoteCommandError(c.settings.ClusterAlias, "cat", err)
		}
		if err := removeServer(ctx, sh, id, info["jobid"]); err != nil {
			return err
		}
		fmt.Fprintln(c.out, successStyle.Render(T("serve_killed", id)))
	}
	return nil
}
