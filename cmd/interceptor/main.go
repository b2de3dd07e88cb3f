// Command interceptor runs the SCORM to xAPI interceptor as a service, replays
// recorded SCORM traces through it and lists the verbs it accepts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "interceptor",
	Short:         "Translate SCORM tracking calls into xAPI statements",
	Long:          `interceptor wraps a host SCORM SetValue function and sends an xAPI statement to a Learning Record Store for every call.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Interceptor configuration file (YAML or JSON); overrides SCORM_CONFIG_FILE")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}
