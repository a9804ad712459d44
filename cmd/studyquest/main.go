// Package main is the entrypoint for studyquest: the progress API server
// and the command-line client in one binary.
package main

import "github.com/studyquest/studyquest/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
