// Package cli implements the command-line interface for geop-sync.
//
// The cli package provides the Cobra-based commands: sync (once or on a
// schedule), plan (dry run), export (iCalendar file), auth (Google authorization) and
// portal-login (store the portal password). It loads the YAML config, applies
// environment and flag overrides through viper, sets up logging and wires the
// portal, calendar, storage and audit packages into a sync driver.
package cli
