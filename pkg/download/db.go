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

package download

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/fwt/pkg/nedb"
	"gitlab.com/tozd/go/errors"
)

// Kind names the document database a download run works on.
type Kind string

const (
	Actors Kind = "actors"
	Items  Kind = "items"
)

// ErrKind is returned for a database kind without image fields.
var ErrKind = errors.Base("type only allows actors or items")

// ParseKind checks s names a supported kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Actors, Items:
		return k, nil
	}
	return "", errors.Errorf("%w: got %q", ErrKind, s)
}

// 📚 Database downloads the images of every document in db and replaces the
// documents that changed. It returns how many did; saving is left to the caller.
func (d *Downloader) Database(ctx context.Context, db *nedb.DB, kind Kind, assetDir string) (int, error) {
	fn := d.DownloadActorImages
	switch kind {
	case Actors:
	case Items:
		fn = d.DownloadItemImages
	default:
		return 0, errors.Errorf("%w: got %q", ErrKind, kind)
	}

	changed := 0
	for i, doc := range db.Docs() {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		next, err := fn(ctx, doc, assetDir)
		if err != nil {
			return changed, err
		}
		if next == doc {
			continue
		}
		if err := db.Replace(i, next); err != nil {
			return changed, err
		}
		changed++
	}
	zerolog.Ctx(ctx).Info().Str("db", db.Path()).Int("changed", changed).Msg("downloaded document images")
	return changed, nil
}
