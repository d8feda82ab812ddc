package main

import "github.com/amurex/inboxtagger/cmd"

// Overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
