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

package log

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// 📢 UserLogger prints command-level feedback for people at a terminal
type UserLogger struct {
	log zerolog.Logger // for debug/error logging
}

// 🎯 NewUserLogger creates a new user logger
func NewUserLogger(ctx context.Context) *UserLogger {
	return &UserLogger{
		log: *zerolog.Ctx(ctx),
	}
}

// 🔍 LogValidation logs validation results
func (u *UserLogger) LogValidation(valid bool, description string, err error) {
	if valid {
		pterm.Success.WithPrefix(pterm.Prefix{Text: "✅"}).Println(description)
		u.log.Info().Msg(description)
		return
	}
	if err != nil {
		pterm.Error.WithPrefix(pterm.Prefix{Text: "❌"}).Println(description)
		pterm.Error.Println(err)
		u.log.Error().Err(err).Msg(description)
		return
	}
	pterm.Warning.WithPrefix(pterm.Prefix{Text: "⚠️"}).Println(description)
	u.log.Warn().Msg(description)
}

// 📦 LogProject prints a labelled project fact
func (u *UserLogger) LogProject(label string, value any) {
	msg := fmt.Sprintf("%s: %v", label, value)
	pterm.Info.WithPrefix(pterm.Prefix{Text: "📦"}).Println(msg)
	u.log.Info().Str(label, fmt.Sprint(value)).Msg("project info")
}

// 📋 LogPreset prints one configured preset
func (u *UserLogger) LogPreset(name, description string, commands []string) {
	pterm.Info.WithPrefix(pterm.Prefix{Text: "🔖"}).Printf("%s: %s %v\n", name, description, commands)
	u.log.Debug().Str("preset", name).Strs("commands", commands).Msg(description)
}

// 👀 LogPreview prints a change a dry run would make
func (u *UserLogger) LogPreview(file string, line int, diff string) {
	pterm.Println(fmt.Sprintf("  %s:%d %s", file, line, diff))
	u.log.Debug().Str("file", file).Int("line", line).Msg("would rewrite")
}

// 🏁 LogDone reports the end of a command
func (u *UserLogger) LogDone(description string) {
	pterm.Success.WithPrefix(pterm.Prefix{Text: "🏁"}).Println(description)
	u.log.Info().Msg(description)
}
