package main

import (
	"fmt"
	"os"

	"ledgerpipe/cmd/ingest"
	"ledgerpipe/cmd/root"
	"ledgerpipe/cmd/template"
	"ledgerpipe/internal/config"
)

func init() {
	config.LoadEnv()

	root.Cmd.AddCommand(ingest.Cmd)
	root.Cmd.AddCommand(template.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
