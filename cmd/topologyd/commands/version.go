package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wanderer-industries/topologyd/version"
)

// VersionCmd prints build information for the topologyd binary.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show topologyd version information",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		info := version.Get()

		if jsonOutput {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error formatting JSON: %v\n", err)
				return
			}
			fmt.Println(string(output))
			return
		}

		fmt.Println(info.String())
		fmt.Printf("Platform: %s\n", info.Platform)
		fmt.Printf("Go: %s\n", info.GoVersion)
	},
}

func init() {
	VersionCmd.Flags().BoolP("json", "j", false, "output version info as JSON")
}
