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

package manager

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/fwt/pkg/log"
	"github.com/walteh/fwt/pkg/nedb"
	"gitlab.com/tozd/go/errors"
)

// Pipeline is the plan, execute and rewrite cycle shared by the managers.
type Pipeline interface {
	GenerateRewriteQueue(ctx context.Context, lower bool) error
	ProcessFileQueue(ctx context.Context) error
	ProcessRewriteQueue(ctx context.Context, quote bool) error
	Plan() []log.FileOperation
	Preview(ctx context.Context, quote bool) ([]nedb.LineChange, error)
}

var (
	_ Pipeline = (*FileManager)(nil)
	_ Pipeline = (*SetManager)(nil)
)

// RunOptions tunes a pipeline run.
type RunOptions struct {
	Lower  bool
	DryRun bool
	Quote  bool
}

// 🏃 Run generates the rewrite queue, then either reports what would change
// (dry run) or moves the files and rewrites the databases
func Run(ctx context.Context, p Pipeline, opts RunOptions) ([]nedb.LineChange, error) {
	logger := zerolog.Ctx(ctx)

	if err := p.GenerateRewriteQueue(ctx, opts.Lower); err != nil {
		return nil, errors.Errorf("generating rewrite queue: %w", err)
	}

	if opts.DryRun {
		out := log.FromContext(ctx)
		for _, op := range p.Plan() {
			out.LogFileOperation(ctx, op)
		}
		changes, err := p.Preview(ctx, opts.Quote)
		if err != nil {
			return nil, errors.Errorf("previewing rewrites: %w", err)
		}
		logger.Info().Int("changes", len(changes)).Msg("dry run complete")
		return changes, nil
	}

	if err := p.ProcessFileQueue(ctx); err != nil {
		return nil, errors.Errorf("processing files: %w", err)
	}
	if err := p.ProcessRewriteQueue(ctx, opts.Quote); err != nil {
		return nil, errors.Errorf("processing rewrites: %w", err)
	}
	logger.Info().Msg("run complete")
	return nil, nil
}
