package commands

import (
	"github.com/spf13/cobra"

	"lattice/internal/packages"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Fetch every dependency in lattice.toml and pin lattice.lock",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return packages.NewPackageManager(".").InstallDependencies()
	},
}

var addCmd = &cobra.Command{
	Use:   "add <pkg> [version]",
	Short: "Add a dependency to lattice.toml and fetch it",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		version := ""
		if len(args) > 1 {
			version = args[1]
		}
		return packages.NewPackageManager(".").AddPackage(args[0], version)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <pkg>",
	Short: "Remove a dependency from lattice.toml and lattice.lock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return packages.NewPackageManager(".").RemovePackage(args[0])
	},
}
