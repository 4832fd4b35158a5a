package main

import (
	"github.com/robotalks/mkmx/pkg/cli/sh"
	"github.com/robotalks/mkmx/pkg/env"

	_ "github.com/robotalks/mkmx/pkg/cli/cmds/bus"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
