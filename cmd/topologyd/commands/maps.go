package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wanderer-industries/topologyd/config"
	"github.com/wanderer-industries/topologyd/errors"
)

// MapsCmd inspects the statically-configured map roster.
var MapsCmd = &cobra.Command{
	Use:   "maps",
	Short: "Inspect the configured map roster",
}

var mapsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every configured map",
	RunE:  runMapsList,
}

func init() {
	mapsListCmd.Flags().BoolP("json", "j", false, "output as JSON")
	MapsCmd.AddCommand(mapsListCmd)
}

func runMapsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		out, err := json.MarshalIndent(cfg.Maps, "", "  ")
		if err != nil {
			return errors.Wrap(err, "marshal maps")
		}
		fmt.Println(string(out))
		return nil
	}

	if len(cfg.Maps) == 0 {
		fmt.Println("no maps configured")
		return nil
	}

	for _, m := range cfg.Maps {
		marker := " "
		if m.IsMain {
			marker = "*"
		}
		fmt.Printf("%s %-20s %-30s %s\n", marker, m.ID, m.Title, m.URL)
	}
	return nil
}
