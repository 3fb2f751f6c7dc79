package main

import (
	"context"
	"strings"
	"testing"
)

func TestServeList(t *testing.T) {
	env := newTestEnv(t)
	sh := env.shell
	sh.on("ls .milatools/control", "lab\nbroken\nold\nqueued\n", 0)
	sh.on("cat .milatools/control/lab", "jobid = 101\nprogram = jupyter lab\nnode_name = cn-a001\nto_forward = cn-a001:8888\n", 0)
	sh.on("cat .milatools/control/broken", "jobid = 102\nprogram = tensorboard\n", 0)
	sh.on("cat .milatools/control/old", "jobid = 103\n", 0)
	sh.on("cat .milatools/control/queued", "jobid = 104\nprogram = mlflow\n", 0)
	sh.on("squeue -j 101 -ho %T", "RUNNING\n", 0)
	sh.on("squeue -j 102 -ho %T", "RUNNING\n", 0)
	sh.on("squeue -j 103 -ho %T", "", 0)
	sh.on("squeue -j 104 -ho %T", "PENDING\n", 0)
	cfg := env.load(t)

	if err := (&ServeListCommand{Config: cfg}).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := env.out.String()
	for _, want := range []string{
		"lab (jupyter lab)\n",
		"    node_name            : cn-a001\n",
		"    to_forward           : cn-a001:8888\n",
		"broken (tensorboard, MISSING INFO)\n",
		"old (???, DEAD)\n",
		"queued (mlflow, PENDING)\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "program") {
		t.Errorf("program should not be listed as a key:\n%s", out)
	}
	if !sh.ran("mkdir -p ~/.milatools/control") {
		t.Error("control directory was not created")
	}
	for _, cmd := range sh.commands {
		if strings.HasPrefix(cmd, "scancel") || strings.HasPrefix(cmd, "rm ") {
			t.Errorf("list without --purge ran %q", cmd)
		}
	}
	if !sh.closed {
		t.Error("session was not closed")
	}
}

func TestServeListPurge(t *testing.T) {
	env := newTestEnv(t)
	sh := env.shell
	sh.on("ls .milatools/control", "broken\nold\n", 0)
	sh.on("cat .milatools/control/broken", "jobid = 102\n", 0)
	sh.on("cat .milatools/control/old", "jobid = 103\n", 0)
	sh.on("squeue -j 102 -ho %T", "RUNNING\n", 0)
	sh.on("squeue -j 103 -ho %T", "slurm_load_jobs error: Invalid job id specified\n", 1)
	cfg := env.load(t)

	if err := (&ServeListCommand{Config: cfg, Purge: true}).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, want := range []string{"scancel 102", "rm .milatools/control/broken", "rm .milatools/control/old"} {
		if !sh.ran(want) {
			t.Errorf("%q was not run; commands = %v", want, sh.commands)
		}
	}
	if sh.ran("scancel 103") {
		t.Error("a dead job should not be cancelled")
	}
}

func TestServeListEmpty(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.load(t)

	if err := (&ServeListCommand{Config: cfg}).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.out.String(), "No persistent servers") {
		t.Errorf("output = %q", env.out.String())
	}
}

func TestServeKill(t *testing.T) {
	t.Run("one server", func(t *testing.T) {
		env := newTestEnv(t)
		env.shell.on("cat .milatools/control/lab", "jobid = 101\n", 0)
		cfg := env.load(t)

		if err := (&ServeKillCommand{Config: cfg, Identifier: "lab"}).Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		want := []string{"cat .milatools/control/lab", "scancel 101", "rm .milatools/control/lab"}
		if strings.Join(env.shell.commands, "|") != strings.Join(want, "|") {
			t.Errorf("commands = %v, want %v", env.shell.commands, want)
		}
	})

	t.Run("all servers", func(t *testing.T) {
		env := newTestEnv(t)
		env.shell.on("ls .milatools/control", "a\nb\n", 0)
		env.shell.on("cat .milatools/control/a", "jobid = 1\n", 0)
		env.shell.on("cat .milatools/control/b", "program = lab\n", 0)
		cfg := env.load(t)

		if err := (&ServeKillCommand{Config: cfg, All: true}).Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"scancel 1", "rm .milatools/control/a", "rm .milatools/control/b"} {
			if !env.shell.ran(want) {
				t.Errorf("%q was not run; commands = %v", want, env.shell.commands)
			}
		}
	})

	t.Run("no identifier", func(t *testing.T) {
		env := newTestEnv(t)
		cfg := env.load(t)
		err := (&ServeKillCommand{Config: cfg}).Run(context.Background())
		if err == nil || !strings.Contains(err.Error(), "Please give the name of the server to kill") {
			t.Errorf("Run() error = %v", err)
		}
		if len(env.shell.commands) != 0 {
			t.Errorf("commands = %v", env.shell.commands)
		}
	})

	t.Run("identifier outside the control directory", func(t *testing.T) {
		env := newTestEnv(t)
		cfg := env.load(t)
		if err := (&ServeKillCommand{Config: cfg, Identifier: "../.bashrc"}).Run(context.Background()); err == nil {
			t.Error("Run() should reject a path")
		}
	})

	t.Run("malformed job id", func(t *testing.T) {
		env := newTestEnv(t)
		env.shell.on("cat .milatools/control/lab", "jobid = 1; reboot\n", 0)
		cfg := env.load(t)
		if err := (&ServeKillCommand{Config: cfg, Identifier: "lab"}).Run(context.Background()); err == nil {
			t.Error("Run() should reject a malformed job id")
		}
		for _, cmd := range env.shell.commands {
			if strings.HasPrefix(cmd, "scancel") {
				t.Errorf("ran %q", cmd)
			}
		}
	})
}
