/*
Copyright 2026 The Skaffold Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/docker/compose-release/pkg/release/config"
	"github.com/docker/compose-release/pkg/release/constants"
	"github.com/docker/compose-release/pkg/release/output/log"
	"github.com/docker/compose-release/pkg/release/version"
)

// NewComposeReleaseCommand returns the root command. Release settings are
// read from flags and the environment into a fresh viper instance.
func NewComposeReleaseCommand(out, errOut io.Writer) *cobra.Command {
	var verbosity string
	v := viper.New()
	config.BindEnv(v)

	rootCmd := &cobra.Command{
		Use:   "compose-release",
		Short: "Build, check and push the Docker Compose release images",
		Long: `Build, check and push the Docker Compose release images.

Registry credentials are read from HUB_CREDENTIALS, a base64url encoded
JSON object with Username and Password. The Docker engine is selected with
DOCKER_HOST, DOCKER_API_VERSION, DOCKER_CERT_PATH and DOCKER_TLS_VERIFY.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := SetUpLogs(errOut, verbosity); err != nil {
			return err
		}
		log.Entry(context.TODO()).Debugf("compose-release %+v", version.Get())
		return nil
	}

	rootCmd.AddCommand(NewCmdImages(v))
	rootCmd.AddCommand(NewCmdVersion())

	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", constants.DefaultLogLevel.String(), "Log level (debug, info, warn, error, fatal, panic)")
	return rootCmd
}

// SetUpLogs sends logs to out at the given level.
func SetUpLogs(out io.Writer, level string) error {
	logrus.SetOutput(out)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	logrus.SetLevel(lvl)
	return nil
}
