package main

import (
	"os"

	servecmder "github.com/meridianlabs/mnemo/cmd/mnemo/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "mnemoapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .mnemo/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
