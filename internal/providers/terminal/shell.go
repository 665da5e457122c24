package terminal

import "strings"

// CommandSpec describes how to launch the working shell on a platform.
type CommandSpec struct {
	Path string
	Args []string
	Env  []string // appended to the inherited environment
}

// ShellSpec maps a platform descriptor to the shell invocation used for new
// sessions. It is a pure function of goos and the environment lookup so it
// can be tested without spawning anything.
func ShellSpec(goos string, getenv func(string) string) CommandSpec {
	if goos == "windows" {
		path := getenv("COMSPEC")
		if path == "" {
			path = "powershell.exe"
		}
		return CommandSpec{
			Path: path,
			Env:  []string{"TERM=xterm-256color"},
		}
	}

	path := getenv("SHELL")
	if path == "" {
		path = "/bin/bash"
	}

	spec := CommandSpec{
		Path: path,
		Env:  []string{"TERM=xterm-256color", "COLORTERM=truecolor"},
	}

	// interactive invocation flags differ per shell
	switch {
	case strings.Contains(path, "zsh"):
		spec.Args = []string{"-i"}
	case strings.Contains(path, "bash"):
		spec.Args = []string{"--login", "-i"}
	}

	return spec
}
