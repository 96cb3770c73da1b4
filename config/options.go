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

// Package config defines the server's recognized option set (spec §6
// "Configuration options") and loads it through Viper, the way the teacher
// loads component configuration (nabbar-golib/config, nabbar-golib/cobra).
// Struct validation goes through go-playground/validator/v10, the same
// library nabbar-golib/logger/config uses for its own Options.Validate.
package config

import (
	"fmt"
	"path/filepath"

	libval "github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	liberr "github.com/sabouaram/mqiserver/errors"
)

// Options mirrors spec §6's recognized option table exactly, one field per
// row. QueryTimeout, PendingConnections and ServerThread are loaded but not
// read by server.Supervisor: each query runs with the timeout given in its
// own run/run_async command, and the listener uses the operating system's
// default accept backlog.
type Options struct {
	Port                     int     `mapstructure:"port"`
	UnixDomainSocket         string  `mapstructure:"unix_domain_socket" validate:"omitempty,absolutepath"`
	Password                 string  `mapstructure:"password"`
	QueryTimeout             float64 `mapstructure:"query_timeout"`
	PendingConnections       int     `mapstructure:"pending_connections"`
	RunServerOnThread        bool    `mapstructure:"run_server_on_thread"`
	ServerThread             string  `mapstructure:"server_thread"`
	WriteConnectionValues    bool    `mapstructure:"write_connection_values"`
	WriteOutputToFile        string  `mapstructure:"write_output_to_file"`
	IgnoreSigInt             bool    `mapstructure:"ignore_sig_int"`
	HaltOnConnectionFailure  bool    `mapstructure:"halt_on_connection_failure"`
}

// Defaults returns the option set spec §6 implies when a value is unset:
// kernel-assigned port, unbounded query timeout, a modest accept backlog.
func Defaults() Options {
	return Options{
		Port:               0,
		QueryTimeout:       -1,
		PendingConnections: 5,
		ServerThread:       "mqiserver",
	}
}

// Bind registers Defaults() with v so that unset keys resolve to them
// (mirrors nabbar-golib/cobra/configure.go's SetDefault-then-Unmarshal
// pattern).
func Bind(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("port", d.Port)
	v.SetDefault("unix_domain_socket", d.UnixDomainSocket)
	v.SetDefault("password", d.Password)
	v.SetDefault("query_timeout", d.QueryTimeout)
	v.SetDefault("pending_connections", d.PendingConnections)
	v.SetDefault("run_server_on_thread", d.RunServerOnThread)
	v.SetDefault("server_thread", d.ServerThread)
	v.SetDefault("write_connection_values", d.WriteConnectionValues)
	v.SetDefault("write_output_to_file", d.WriteOutputToFile)
	v.SetDefault("ignore_sig_int", d.IgnoreSigInt)
	v.SetDefault("halt_on_connection_failure", d.HaltOnConnectionFailure)
}

// Load unmarshals v into an Options and validates it.
func Load(v *viper.Viper) (Options, error) {
	Bind(v)
	var o Options
	if err := v.Unmarshal(&o); err != nil {
		return Options{}, fmt.Errorf("config: %w", err)
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

// validate registers the one custom constraint this Options struct needs
// beyond validator's built-ins: an "absolutepath" tag backing
// unix_domain_socket's requirement.
func validate() *libval.Validate {
	v := libval.New()
	_ = v.RegisterValidation("absolutepath", func(fl libval.FieldLevel) bool {
		return filepath.IsAbs(fl.Field().String())
	})
	return v
}

// Validate enforces the one structural rule spec §4.5 calls out: a local
// socket path must be absolute. A violation is reported as domain_error
// (spec §4.5 "reject with domain_error"), so the supervisor's startup
// path can recognize the failure the same way it would any other
// spec-named error condition.
func (o Options) Validate() error {
	if err := validate().Struct(o); err != nil {
		return liberr.Wrap(liberr.TagDomainError, fmt.Errorf("unix_domain_socket must be an absolute path, got %q", o.UnixDomainSocket))
	}
	return nil
}

// UseUnixSocket reports whether the local-socket endpoint takes precedence
// over the TCP port (spec §6 "Ignored if unix_domain_socket is set").
func (o Options) UseUnixSocket() bool {
	return o.UnixDomainSocket != ""
}
