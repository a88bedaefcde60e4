package main

import (
	"fmt"
	"os"

	"github.com/mwantia/phoenix-tracker/cmd/phoenix-tracker/cli"
	"github.com/mwantia/phoenix-tracker/cmd/phoenix-tracker/cli/client"
	"github.com/mwantia/phoenix-tracker/cmd/phoenix-tracker/cli/server"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	root := cli.NewRootCommand(cli.VersionInfo{
		Version: version,
		Commit:  commit,
	})

	root.AddCommand(cli.NewVersionCommand())

	root.AddCommand(server.NewAgentCommand())
	root.AddCommand(server.NewConfigCommand())

	root.AddCommand(client.NewDbCommand())
	root.AddCommand(client.NewImportCommand())
	root.AddCommand(client.NewCrawlCommand())
	root.AddCommand(client.NewStatisticsCommand())
	root.AddCommand(client.NewReportCommand())
	root.AddCommand(client.NewRunCommand())

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
