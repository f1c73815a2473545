package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jetstack/securelink/pkg/version"
)

var verbose bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the version",
	Long: `Display securelink version.
`,
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(verbose)
	},
}

func printVersion(verbose bool) {
	fmt.Println("Securelink version: ", version.Version, runtime.GOOS+"/"+runtime.GOARCH)
	if verbose {
		fmt.Println("  Commit: ", version.Commit)
		fmt.Println("  Built:  ", version.BuildDate)
		fmt.Println("  Go:     ", runtime.Version())
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.PersistentFlags().BoolVar(
		&verbose,
		"verbose",
		false,
		"If enabled, displays the additional information about this build.",
	)
}
