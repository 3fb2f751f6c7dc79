package main

import (
	"time"

	"github.com/mila-iqia/milatools/internal/config"
)

// Allocation flags written into the mila-cpu and mila-gpu stanzas
var (
	// sallocCPUFlags reserve a node for the ProxyCommand; singleton keeps
	// one such allocation per user.
	sallocCPUFlags = []string{"--partition=unkillable", "--dependency=singleton", "--cpus-per-task=2", "--mem=16G"}
	sallocGPUFlags = append(append([]string{}, sallocCPUFlags...), "--gres=gpu:1")

	// srunCPUFlags are the RemoteCommand step inside that allocation
	srunCPUFlags = []string{"--cpus-per-task=2", "--mem=16G"}
	srunGPUFlags = append(append([]string{}, srunCPUFlags...), "--gres=gpu:1")
)

// Command timeouts
const (
	// remoteCommandTimeout bounds a single command on the login node
	remoteCommandTimeout = config.DefaultCommandTimeout * time.Second

	// passwordlessCheckTimeout bounds the ssh probe run by init
	passwordlessCheckTimeout = config.SSHAuthTimeout * time.Second
)

// unknownProgram is shown for control files that do not name a program
const unknownProgram = "???"
