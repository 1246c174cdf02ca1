// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"bufio"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/walteh/fwt/cmd/fwt/opts"
	"github.com/walteh/fwt/pkg/nedb"
	"gitlab.com/tozd/go/errors"
)

// NewNedb2YamlCmd creates the nedb2yaml command
func NewNedb2YamlCmd(ro *opts.RootOpts) *cobra.Command {
	return &cobra.Command{
		Use:         "nedb2yaml FILE",
		Short:       "Print a NeDB database as YAML documents",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{opts.SkipConfig: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			return convert(cmd, args[0], nedb.WriteYAML)
		},
	}
}

// NewYaml2NedbCmd creates the yaml2nedb command
func NewYaml2NedbCmd(ro *opts.RootOpts) *cobra.Command {
	return &cobra.Command{
		Use:         "yaml2nedb FILE",
		Short:       "Print a multi-document YAML file as a NeDB database",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{opts.SkipConfig: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			return convert(cmd, args[0], nedb.FromYAML)
		},
	}
}

func convert(cmd *cobra.Command, file string, fn func(r io.Reader, w io.Writer) error) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.Errorf("opening %s: %w", file, err)
	}
	defer f.Close()

	out := bufio.NewWriter(cmd.OutOrStdout())
	if err := fn(f, out); err != nil {
		return errors.Errorf("converting %s: %w", file, err)
	}
	return out.Flush()
}
