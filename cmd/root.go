package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:   "cmrconsole",
		Short: "Console client for the CMR analysis agent",
	}

	root.AddCommand(queryCMD(), streamCMD(), serveCMD())
	_ = root.Execute()
}
