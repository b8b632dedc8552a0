package commands

import (
	"github.com/lumennet/firefly/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for the firefly daemon
var RootCmd = &cobra.Command{
	Use:              "firefly",
	Short:            "firefly clock synchronization",
	TraverseChildren: true,
}
