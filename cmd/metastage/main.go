// Package main provides the entry point for the metastage CLI tool.
package main

import "github.com/agentstation/metastage/cmd/metastage/cmd"

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
