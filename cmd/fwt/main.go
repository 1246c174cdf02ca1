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

package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/walteh/fwt/cmd/fwt/opts"
	"github.com/walteh/fwt/pkg/log"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	ro := &opts.RootOpts{}
	rootCmd := newRootCmd(ro, os.Stdout)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		userLogger := ro.UserLogger
		if userLogger == nil {
			userLogger = log.NewUserLogger(ctx)
		}
		userLogger.LogValidation(false, "Command failed", err)
		os.Exit(1)
	}
}
