// Package slurm builds SLURM command lines and parses what they print.
// Nothing here runs a command: callers hand the Argv to a local runner or
// to a remote session.
package slurm

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mila-iqia/milatools/internal/security"
)

// Argv is a command line.
type Argv []string

// String renders the command for a POSIX shell.
func (a Argv) String() string {
	quoted := make([]string, len(a))
	for i, s := range a {
		quoted[i] = security.ShellQuote(s)
	}
	return strings.Join(quoted, " ")
}

// JobState is the %T column of squeue.
type JobState string

const (
	StatePending    JobState = "PENDING"
	StateRunning    JobState = "RUNNING"
	StateCompleting JobState = "COMPLETING"
	// StateGone is reported when squeue no longer knows the job.
	StateGone JobState = ""
)

var (
	batchJobRe   = regexp.MustCompile(`^Submitted batch job ([0-9]+)`)
	grantedRe    = regexp.MustCompile(`salloc: Granted job allocation ([0-9]+)`)
	nodesReadyRe = regexp.MustCompile(`salloc: Nodes ([^ ]+) are ready for job`)
	jobIDRe      = regexp.MustCompile(`^[0-9]+(_[0-9]+)?$`)
)

// FirstNodeName returns the first node of a SLURM node list such as
// "cn-c001", "cn-c[001-003]", "cn-c[005,008]" or "cn-c001,rtx8".
func FirstNodeName(nodeList string) string {
	nodeList = strings.TrimSpace(nodeList)
	base, rest, found := strings.Cut(nodeList, "[")
	if !found {
		first, _, _ := strings.Cut(nodeList, ",")
		return first
	}
	inside, _, _ := strings.Cut(rest, "]")
	first, _, _ := strings.Cut(inside, ",")
	first, _, _ = strings.Cut(first, "-")
	return base + first
}

// ParseJobID extracts the job id from a line printed by sbatch or salloc.
func ParseJobID(line string) (string, bool) {
	if m := batchJobRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
		return m[1], true
	}
	if m := grantedRe.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}

// ParseNodesReady extracts the node list salloc reports once the
// allocation is usable.
func ParseNodesReady(line string) (string, bool) {
	if m := nodesReadyRe.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}

// ValidateJobID rejects anything that is not a job id or an array task id.
func ValidateJobID(id string) error {
	if !jobIDRe.MatchString(id) {
		return fmt.Errorf("invalid job id: %q", id)
	}
	return nil
}

// Qualified returns the fully qualified name of a compute node.
func Qualified(node, domain string) string {
	if node == "" || strings.HasSuffix(node, "."+domain) {
		return node
	}
	return node + "." + domain
}

// Salloc requests an interactive allocation.
func Salloc(flags ...string) Argv {
	return append(Argv{"salloc"}, flags...)
}

// Sbatch submits script with flags.
func Sbatch(script string, flags ...string) Argv {
	argv := append(Argv{"sbatch"}, flags...)
	return append(argv, script)
}

// Srun runs a step inside the current allocation.
func Srun(flags []string, command ...string) Argv {
	argv := append(Argv{"srun"}, flags...)
	return append(argv, command...)
}

// Scancel cancels a job.
func Scancel(jobID string) Argv {
	return Argv{"scancel", jobID}
}

// SqueueState prints only the state of jobID, without header.
func SqueueState(jobID string) Argv {
	return Argv{"squeue", "-j", jobID, "-ho", "%T"}
}

// ParseState reads the output of SqueueState.
func ParseState(out string) JobState {
	first, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	return JobState(strings.TrimSpace(first))
}

// SacctmgrAccounts lists the accounts user may charge jobs to.
func SacctmgrAccounts(user string) Argv {
	return Argv{"sacctmgr", "--noheader", "--parsable2", "show", "associations", "where", "user=" + user, "format=Account"}
}

// ParseAccounts reads the output of SacctmgrAccounts, dropping duplicates.
func ParseAccounts(out string) []string {
	seen := make(map[string]bool)
	var accounts []string
	for _, line := range strings.Split(out, "\n") {
		a := strings.TrimSpace(line)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	return accounts
}

// ServerInfo is the content of a control file written by a persistent
// server job: one "key = value" per line.
type ServerInfo map[string]string

// ParseServerInfo reads a control file. Lines without " = " are ignored.
func ParseServerInfo(text string) ServerInfo {
	info := make(ServerInfo)
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, " = ")
		if !ok {
			continue
		}
		info[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return info
}

// Keys returns the keys of info in sorted order.
func (info ServerInfo) Keys() []string {
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BatchScript is the sbatch script of a persistent server. It records the
// job id in controlFile before running command.
func BatchScript(outputFile, controlFile, command string) string {
	return fmt.Sprintf(`#!/bin/bash
#SBATCH --output=%s
#SBATCH --ntasks=1

echo jobid = $SLURM_JOB_ID >> %s

%s
`, outputFile, controlFile, command)
}

// SSHProxyCommand is the ProxyCommand of a compute alias: it allocates a
// node through the login alias and pipes ssh to the node's port 22.
func SSHProxyCommand(loginAlias string, flags ...string) string {
	salloc := append(Salloc(flags...), "/usr/bin/env", "bash", "-c", `nc $SLURM_NODELIST 22`)
	return fmt.Sprintf(`ssh %s "%s"`, loginAlias, joinForDoubleQuotes(salloc))
}

// SrunRemoteCommand is the RemoteCommand of a compute alias: a login shell
// on the allocated node.
func SrunRemoteCommand(flags ...string) string {
	srunFlags := append(append([]string{}, flags...), "--pty")
	return strings.Join(Srun(srunFlags, "/usr/bin/env", "bash", "-l"), " ")
}

// joinForDoubleQuotes joins argv for use inside "..." on the ssh command
// line: arguments with spaces get single quotes and $ is escaped so the
// local shell leaves it for the remote one.
func joinForDoubleQuotes(argv Argv) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if strings.ContainsAny(a, " \t") {
			a = "'" + a + "'"
		}
		parts[i] = strings.ReplaceAll(a, "$", `\$`)
	}
	return strings.Join(parts, " ")
}
