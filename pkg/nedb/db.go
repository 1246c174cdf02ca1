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

package nedb

import (
	"bufio"
	"context"
	"crypto/rand"
	"math/big"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/walteh/fwt/pkg/writer"
	"gitlab.com/tozd/go/errors"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// 📚 DB is a loaded NeDB file. Documents are kept as raw JSON so fields the
// tool does not touch keep their exact encoding.
type DB struct {
	path string
	docs []string
	ids  map[string]int
}

// 📂 Load reads a NeDB file
func Load(path string) (*DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	db := &DB{path: path, ids: map[string]int{}}
	n := 0
	err = eachLine(bufio.NewReader(f), func(line string) error {
		n++
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			return nil
		}
		if !gjson.Valid(line) {
			return errors.Errorf("%s:%d: invalid JSON document", path, n)
		}
		db.add(line)
		return nil
	}, func() error { return nil })
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (d *DB) add(doc string) {
	if id := gjson.Get(doc, "_id").String(); id != "" {
		d.ids[id] = len(d.docs)
	}
	d.docs = append(d.docs, doc)
}

// Path returns the file the DB was loaded from.
func (d *DB) Path() string { return d.path }

// Len returns the number of documents.
func (d *DB) Len() int { return len(d.docs) }

// Docs returns the raw documents in file order.
func (d *DB) Docs() []string {
	out := make([]string, len(d.docs))
	copy(out, d.docs)
	return out
}

// Doc returns document i.
func (d *DB) Doc(i int) string { return d.docs[i] }

// ByID returns the document with the given _id.
func (d *DB) ByID(id string) (string, bool) {
	i, ok := d.ids[id]
	if !ok {
		return "", false
	}
	return d.docs[i], true
}

// Get reads a gjson path from document i.
func (d *DB) Get(i int, path string) gjson.Result {
	return gjson.Get(d.docs[i], path)
}

// Set writes value at a sjson path of document i.
func (d *DB) Set(i int, path string, value any) error {
	doc, err := sjson.Set(d.docs[i], path, value)
	if err != nil {
		return errors.Errorf("setting %s: %w", path, err)
	}
	d.docs[i] = doc
	return nil
}

// Replace swaps document i for doc.
func (d *DB) Replace(i int, doc string) error {
	if !gjson.Valid(doc) {
		return errors.New("invalid JSON document")
	}
	if old := gjson.Get(d.docs[i], "_id").String(); old != "" {
		delete(d.ids, old)
	}
	if id := gjson.Get(doc, "_id").String(); id != "" {
		d.ids[id] = i
	}
	d.docs[i] = doc
	return nil
}

// ➕ Insert appends doc, giving it a fresh _id when it has none
func (d *DB) Insert(doc string) (string, error) {
	if !gjson.Valid(doc) {
		return "", errors.New("invalid JSON document")
	}
	id := gjson.Get(doc, "_id").String()
	if id == "" {
		for {
			id = GenID()
			if _, taken := d.ids[id]; !taken {
				break
			}
		}
		var err error
		doc, err = sjson.Set(doc, "_id", id)
		if err != nil {
			return "", errors.Errorf("setting _id: %w", err)
		}
	}
	if _, taken := d.ids[id]; taken {
		return "", errors.Errorf("duplicate _id %s", id)
	}
	d.add(doc)
	return id, nil
}

// 💾 Save writes the documents back, one per line
func (d *DB) Save(ctx context.Context, opts ...writer.Option) error {
	var sb strings.Builder
	for _, doc := range d.docs {
		sb.WriteString(doc)
		sb.WriteByte('\n')
	}
	if err := writer.WriteFile(ctx, d.path, []byte(sb.String()), opts...); err != nil {
		return errors.Errorf("saving %s: %w", d.path, err)
	}
	return nil
}

// GenID returns a random 16 character alphanumeric document id.
func GenID() string {
	b := make([]byte, 16)
	max := big.NewInt(int64(len(idAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = idAlphabet[n.Int64()]
	}
	return string(b)
}
