// Package cliconfig loads the settings of the cfgd client commands: the
// admin API URL, the request timeout and the output format.
//
// Later layers win:
//
//  1. Defaults
//  2. Global file (cfgd/cli.yaml under the user config directory)
//  3. Local file (.cfgd.yaml in the working directory)
//  4. CFGD_ADMIN_URL, CFGD_TIMEOUT and CFGD_OUTPUT
//  5. Command-line flags
//
// Sources records which layer set each value; `cfgd status --table` shows it
// for the admin URL.
package cliconfig
