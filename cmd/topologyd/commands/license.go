package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wanderer-industries/topologyd/config"
	"github.com/wanderer-industries/topologyd/errors"
	"github.com/wanderer-industries/topologyd/httpclient"
	"github.com/wanderer-industries/topologyd/license"
	"github.com/wanderer-industries/topologyd/logger"
	"github.com/wanderer-industries/topologyd/store"
)

// LicenseCmd performs a one-shot license validation check, without
// starting the rest of the daemon.
var LicenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Check the current license validation state",
	RunE:  runLicense,
}

func init() {
	LicenseCmd.Flags().Bool("refresh", false, "force a refresh against the manager API instead of using cached state")
}

func runLicense(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	db, err := store.OpenWithMigrations(cfg.Store.Path, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer db.Close()
	st := store.New(db)

	client := httpclient.New(nil)
	validator := license.New(license.Config{
		LicenseKey:      cfg.License.Key,
		ManagerAPIKey:   cfg.License.ManagerAPIKey,
		ManagerAPIURL:   cfg.License.ManagerAPIURL,
		RefreshInterval: cfg.License.RefreshInterval,
		DevMode:         cfg.DevMode(),
	}, client, st)

	forceRefresh, _ := cmd.Flags().GetBool("refresh")
	state := validator.Validate(context.Background(), forceRefresh)

	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal license state")
	}
	fmt.Println(string(out))
	return nil
}
