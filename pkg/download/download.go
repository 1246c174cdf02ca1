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

// Package download fetches remote images referenced by actor and item
// documents into the project and points the documents at the local copies.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/walteh/fwt/pkg/foundry"
	"github.com/walteh/fwt/pkg/fpath"
	"github.com/walteh/fwt/pkg/log"
	"github.com/walteh/fwt/pkg/writer"
	"gitlab.com/tozd/go/errors"
)

const (
	// UserAgent is sent with every request; some image hosts reject unknown agents.
	UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.87 Safari/537.36"

	// Roll20Host is where Roll20 keeps uploaded images in several sizes.
	Roll20Host = "s3.amazonaws.com/files.d20.io/images"

	DefaultActorDir = "characters"
	DefaultItemDir  = "items"
)

// Roll20Sizes are tried in order before falling back to the linked size.
var Roll20Sizes = []string{"original", "max", "med"}

var urlRe = regexp.MustCompile(`\w+://[^"]*\.(png|jpg|webp)`)

// 📥 Downloader saves remote document images under a project
type Downloader struct {
	project  fpath.Path
	client   *http.Client
	schema   foundry.Schema
	attempts uint
	interval time.Duration
	roll20Re *regexp.Regexp
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) { d.client = c }
}

// WithSchema overrides the document layout picked from the project version.
func WithSchema(s foundry.Schema) Option {
	return func(d *Downloader) { d.schema = s }
}

// WithAttempts sets how many times a failing fetch is tried.
func WithAttempts(n uint) Option {
	return func(d *Downloader) { d.attempts = n }
}

// WithRetryInterval sets the first wait between attempts.
func WithRetryInterval(interval time.Duration) Option {
	return func(d *Downloader) { d.interval = interval }
}

// WithRoll20Host changes the host and path prefix treated as Roll20 storage.
func WithRoll20Host(host string) Option {
	return func(d *Downloader) { d.roll20Re = roll20Pattern(host) }
}

func roll20Pattern(host string) *regexp.Regexp {
	return regexp.MustCompile(`(https?://` + regexp.QuoteMeta(host) + `/(?:[^/"]+/)+)\w+\.(png|jpg|jpeg)[^"]*`)
}

// 🏭 New creates a downloader for the project containing project
func New(project fpath.Path, opts ...Option) (*Downloader, error) {
	if !project.IsProject() {
		return nil, errors.Errorf("%w: %s is not inside a world or module", fpath.ErrPath, project)
	}
	d := &Downloader{
		project:  project,
		client:   &http.Client{Timeout: time.Minute},
		schema:   foundry.SchemaFor(project.Version()),
		attempts: 3,
		interval: 500 * time.Millisecond,
		roll20Re: roll20Pattern(Roll20Host),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// FormatFilename strips characters unsafe in file names and lowercases the
// rest, turning spaces into dashes.
func FormatFilename(name string) string {
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	return strings.TrimPrefix(name, ".")
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9\- .]`)

// remoteExt returns the image extension when s starts with a remote image URL.
func remoteExt(s string) (string, bool) {
	m := urlRe.FindStringSubmatchIndex(s)
	if m == nil || m[0] != 0 {
		return "", false
	}
	return s[m[2]:m[3]], true
}

// 🧙 DownloadActorImages fetches the avatar, token and biography images of
// an actor document and returns the document with local paths
func (d *Downloader) DownloadActorImages(ctx context.Context, doc, assetDir string) (string, error) {
	logger := zerolog.Ctx(ctx)
	if assetDir == "" {
		assetDir = DefaultActorDir
	}

	name := gjson.Get(doc, "name").String()
	img := gjson.Get(doc, d.schema.ActorImage).String()
	token := gjson.Get(doc, d.schema.TokenImage).String()
	bio := gjson.Get(doc, d.schema.ActorBiography).String()
	if img == "" || token == "" {
		logger.Error().Str("actor", name).Msg("no image file, skipping")
		return doc, nil
	}

	dir := d.characterDir(img, token, name, assetDir)
	var err error

	if ext, ok := remoteExt(img); ok {
		if doc, err = d.replaceField(ctx, doc, d.schema.ActorImage, img, dir, FormatFilename("avatar."+ext)); err != nil {
			return doc, err
		}
	}
	if ext, ok := remoteExt(token); ok {
		if doc, err = d.replaceField(ctx, doc, d.schema.TokenImage, token, dir, FormatFilename("token."+ext)); err != nil {
			return doc, err
		}
	}

	if bio != "" && d.roll20Re.MatchString(bio) {
		next := bio
		seen := map[string]bool{}
		for _, m := range d.roll20Re.FindAllStringSubmatch(bio, -1) {
			if seen[m[0]] {
				continue
			}
			seen[m[0]] = true
			file := FormatFilename(fmt.Sprintf("%s-bio-%d.%s", name, len(seen), m[2]))
			if rtp, ok := d.fetch(ctx, m[0], dir, file); ok {
				next = strings.ReplaceAll(next, m[0], rtp)
			}
		}
		if next != bio {
			if doc, err = sjson.Set(doc, d.schema.ActorBiography, next); err != nil {
				return doc, errors.Errorf("updating biography of %s: %w", name, err)
			}
		}
	}
	return doc, nil
}

// 🗡️ DownloadItemImages fetches the image and description images of an item
// document and returns the document with local paths
func (d *Downloader) DownloadItemImages(ctx context.Context, doc, assetDir string) (string, error) {
	if assetDir == "" {
		assetDir = DefaultItemDir
	}

	name := gjson.Get(doc, "name").String()
	img := gjson.Get(doc, d.schema.ItemImage).String()
	desc := gjson.Get(doc, d.schema.ItemDesc).String()
	if img == "" {
		zerolog.Ctx(ctx).Error().Str("item", name).Msg("no image set, skipping")
		return doc, nil
	}

	dir := path.Join(assetDir, FormatFilename(name))
	var err error

	if ext, ok := remoteExt(img); ok {
		if doc, err = d.replaceField(ctx, doc, d.schema.ItemImage, img, dir, FormatFilename("image."+ext)); err != nil {
			return doc, err
		}
	}

	if desc != "" {
		next := desc
		seen := map[string]bool{}
		for _, m := range urlRe.FindAllStringSubmatch(desc, -1) {
			if seen[m[0]] {
				continue
			}
			seen[m[0]] = true
			file := FormatFilename(fmt.Sprintf("%s-desc-%d.%s", name, len(seen), m[1]))
			if rtp, ok := d.fetch(ctx, m[0], dir, file); ok {
				next = strings.ReplaceAll(next, m[0], rtp)
			}
		}
		if next != desc {
			if doc, err = sjson.Set(doc, d.schema.ItemDesc, next); err != nil {
				return doc, errors.Errorf("updating description of %s: %w", name, err)
			}
		}
	}
	return doc, nil
}

func (d *Downloader) replaceField(ctx context.Context, doc, field, src, dir, file string) (string, error) {
	rtp, ok := d.fetch(ctx, src, dir, file)
	if !ok {
		return doc, nil
	}
	next, err := sjson.Set(doc, field, rtp)
	if err != nil {
		return doc, errors.Errorf("setting %s: %w", field, err)
	}
	return next, nil
}

// characterDir keeps downloads next to an actor's existing local images,
// else uses assetDir/<actor name>.
func (d *Downloader) characterDir(img, token, name, assetDir string) string {
	prefix := d.project.ProjectRelDir() + "/"
	for _, p := range []string{img, token} {
		if _, remote := remoteExt(p); remote || !strings.HasPrefix(p, prefix) {
			continue
		}
		return path.Dir(strings.TrimPrefix(p, prefix))
	}
	return path.Join(assetDir, FormatFilename(name))
}

// fetch downloads src to dir/file under the project and returns its target
// path. Failures are logged and reported as false.
func (d *Downloader) fetch(ctx context.Context, src, dir, file string) (string, bool) {
	logger := zerolog.Ctx(ctx)
	rel := path.Join(dir, file)
	dest := filepath.Join(d.project.String(), filepath.FromSlash(rel))
	rtp := path.Join(d.project.ProjectRelDir(), rel)

	u, err := d.resolveURL(ctx, src)
	if err != nil {
		logger.Error().Err(err).Str("url", src).Msg("bad asset URL, skipping")
		return "", false
	}

	n, err := d.get(ctx, u, dest)
	if err != nil {
		logger.Error().Err(err).Str("url", u).Msg("download failed, skipping")
		log.FromContext(ctx).LogFileOperation(ctx, log.FileOperation{Path: rel, Kind: log.OpFailed, Err: err})
		return "", false
	}
	logger.Debug().Str("url", u).Str("to", rtp).Int64("bytes", n).Msg("downloaded asset")
	log.FromContext(ctx).LogFileOperation(ctx, log.FileOperation{Path: rel, Target: u, Kind: log.OpCopied})
	return rtp, true
}

// resolveURL re-escapes the path of raw and swaps Roll20 links for the
// largest size available.
func (d *Downloader) resolveURL(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Errorf("parsing %s: %w", raw, err)
	}
	if p, err := url.PathUnescape(u.EscapedPath()); err == nil {
		u.Path, u.RawPath = p, ""
	}
	clean := u.String()

	m := d.roll20Re.FindStringSubmatch(clean)
	if m == nil {
		return clean, nil
	}
	for _, size := range Roll20Sizes {
		candidate := m[1] + size + "." + m[2]
		if d.available(ctx, candidate) {
			return candidate, nil
		}
	}
	return clean, nil
}

func (d *Downloader) available(ctx context.Context, u string) bool {
	req, err := d.request(ctx, http.MethodHead, u)
	if err != nil {
		return false
	}
	resp, err := d.client.Do(req)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("url", u).Msg("size probe failed")
		return false
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		zerolog.Ctx(ctx).Debug().Int("status", resp.StatusCode).Str("url", u).Msg("size not available")
		return false
	}
	return true
}

func (d *Downloader) request(ctx context.Context, method, u string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, errors.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	return req, nil
}

// get fetches u into dest through a scoped writer so a failed transfer never
// leaves a partial file. Transport errors and server errors are retried.
func (d *Downloader) get(ctx context.Context, u, dest string) (int64, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.interval

	attempts := d.attempts
	if attempts == 0 {
		attempts = 1
	}

	return backoff.Retry(ctx, func() (int64, error) {
		req, err := d.request(ctx, http.MethodGet, u)
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return 0, errors.Errorf("requesting %s: %w", u, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return 0, errors.Errorf("server error: %s", resp.Status)
		case resp.StatusCode != http.StatusOK:
			return 0, backoff.Permanent(errors.Errorf("unexpected status: %s", resp.Status))
		}

		w, err := writer.Open(dest)
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		defer w.Abort()
		if _, err := io.Copy(w, resp.Body); err != nil {
			return 0, errors.Errorf("reading body: %w", err)
		}
		if w.Written() == 0 {
			return 0, backoff.Permanent(errors.Errorf("empty response"))
		}
		if err := w.Commit(ctx); err != nil {
			return 0, backoff.Permanent(err)
		}
		return w.Written(), nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(attempts))
}
