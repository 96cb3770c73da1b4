/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Command mqiserverd launches one embedded query server instance (spec
// §4.7 launch glue): flags and config file are merged through Viper, and
// the resolved Options drive a server.Supervisor.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sabouaram/mqiserver/config"
	"github.com/sabouaram/mqiserver/engine"
	loglvl "github.com/sabouaram/mqiserver/logger/level"
	"github.com/sabouaram/mqiserver/logger"
	"github.com/sabouaram/mqiserver/server"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mqiserverd",
		Short: "Run an embedded, password-authenticated query server",
		RunE:  runServe,
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml/json); defaults to ~/.mqiserverd.yaml")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "panic|fatal|error|warn|info|debug")

	cmd.Flags().Int("port", 0, "TCP loopback port (0 = kernel assigned)")
	cmd.Flags().String("unix-domain-socket", "", "absolute path for a local socket endpoint")
	cmd.Flags().String("password", "", "shared secret; generated when empty")
	cmd.Flags().Float64("query-timeout", -1, "query timeout option in seconds (-1 = unbounded); loaded but not applied by the server")
	cmd.Flags().Int("pending-connections", 5, "accept backlog option; loaded but not applied by the server")
	cmd.Flags().Bool("run-server-on-thread", false, "return immediately instead of blocking")
	cmd.Flags().Bool("write-connection-values", false, "print port/path and password to stdout on startup")
	cmd.Flags().String("write-output-to-file", "", "redirect stdout/stderr of this process to a file")
	cmd.Flags().Bool("ignore-sig-int", false, "ignore SIGINT so a client-side debugger can't suspend the server")
	cmd.Flags().Bool("halt-on-connection-failure", false, "terminate the process on an abnormal disconnect")

	cmd.AddCommand(newConfigureCommand())
	return cmd
}

// newConfigureCommand writes a starter config file populated with
// config.Defaults(), mirroring nabbar-golib/cobra's AddCommandConfigure
// (generate-then-edit) workflow.
func newConfigureCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "configure [path]",
		Short: "Write a starter config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				var err error
				path, err = defaultConfigPath()
				if err != nil {
					return err
				}
			}
			data, err := marshalSample(config.Defaults())
			if err != nil {
				return err
			}
			return os.WriteFile(path, data, 0o600)
		},
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	bindFlags(v, cmd)

	path := cfgFile
	if path == "" {
		var err error
		path, err = defaultConfigPath()
		if err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType(configTypeFor(path))
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("mqiserverd: reading config %s: %w", path, err)
		}
	}

	opts, err := config.Load(v)
	if err != nil {
		return err
	}

	log := logger.New(os.Stderr, loglvl.Parse(logLevel))

	sup := server.New(opts, func() engine.Session {
		return engine.NewReference()
	}, engine.NewParser(), log)

	printBanner(opts)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	if !opts.IgnoreSigInt {
		signal.Notify(sigCh, syscall.SIGINT)
	}
	go func() {
		<-sigCh
		sup.Stop()
	}()

	return sup.Start()
}

// bindFlags copies every cobra flag into the Viper instance under the same
// key the config file uses (mirrors nabbar-golib/cobra's flag/Viper glue).
func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	names := map[string]string{
		"port":                       "port",
		"unix-domain-socket":         "unix_domain_socket",
		"password":                   "password",
		"query-timeout":              "query_timeout",
		"pending-connections":        "pending_connections",
		"run-server-on-thread":       "run_server_on_thread",
		"write-connection-values":    "write_connection_values",
		"write-output-to-file":       "write_output_to_file",
		"ignore-sig-int":             "ignore_sig_int",
		"halt-on-connection-failure": "halt_on_connection_failure",
	}
	for flagName, key := range names {
		f := cmd.Flags().Lookup(flagName)
		if f != nil && f.Changed {
			_ = v.BindPFlag(key, f)
		}
	}
}

func defaultConfigPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("mqiserverd: resolving home directory: %w", err)
	}
	return filepath.Join(home, ".mqiserverd.yaml"), nil
}

func configTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

// printBanner writes a decorative, human-facing startup line to stderr,
// naming the configured endpoint but never the password. The
// machine-readable port/path and password lines are written verbatim and
// uncolored to stdout by server.Supervisor when write_connection_values is
// enabled, so a client parsing stdout never has to strip ANSI codes.
func printBanner(opts config.Options) {
	banner := color.New(color.FgCyan, color.Bold)
	banner.Fprintln(os.Stderr, "mqiserverd starting")
	if opts.UseUnixSocket() {
		fmt.Fprintf(os.Stderr, "  endpoint: unix socket %s\n", opts.UnixDomainSocket)
	} else {
		fmt.Fprintf(os.Stderr, "  endpoint: tcp 127.0.0.1:%d\n", opts.Port)
	}
}

func marshalSample(opts config.Options) ([]byte, error) {
	return yaml.Marshal(opts)
}
