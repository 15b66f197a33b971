// Package baseline holds the authoritative field values persisted between runs.
//
// The store keeps the baseline file as raw JSON so content it does not manage
// (bracket rates, comments, key order) survives a load/save cycle untouched.
package baseline

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

// LastUpdateKey is written by Save and never read by extraction logic.
const LastUpdateKey = "meta.last_update"

// Values is a read-only view over baseline fields.
type Values interface {
	Get(key string) (float64, bool)
}

// Store is the in-memory baseline for one run.
type Store struct {
	path string
	raw  []byte
}

// New creates a Store over an in-memory JSON document. Empty input yields an empty object.
func New(path string, raw []byte) (*Store, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = []byte("{}")
	}
	if !gjson.ValidBytes(raw) {
		return nil, eris.Errorf("baseline: invalid json in %s", path)
	}
	if !gjson.ParseBytes(raw).IsObject() {
		return nil, eris.Errorf("baseline: %s is not a json object", path)
	}
	return &Store{path: path, raw: raw}, nil
}

// Load reads the baseline file. A missing file yields an empty store so the
// first successful extraction of every field is reported as a change.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Error("baseline: file not found, starting empty", zap.String("path", path))
			return New(path, nil)
		}
		return nil, eris.Wrapf(err, "baseline: read %s", path)
	}
	return New(path, raw)
}

// Path returns the file the store persists to.
func (s *Store) Path() string { return s.path }

// Get returns the numeric value at key. Non-numeric and missing values report false.
func (s *Store) Get(key string) (float64, bool) {
	r := gjson.GetBytes(s.raw, escapePath(key))
	if r.Type != gjson.Number {
		return 0, false
	}
	return r.Float(), true
}

// Len returns the number of elements of the array at key, or 0.
func (s *Store) Len(key string) int {
	r := gjson.GetBytes(s.raw, escapePath(key))
	if !r.IsArray() {
		return 0
	}
	return len(r.Array())
}

// String returns the string value at key.
func (s *Store) String(key string) string {
	return gjson.GetBytes(s.raw, escapePath(key)).String()
}

// Set overwrites the value at key, creating intermediate objects as needed.
// Whole numbers are stored as JSON integers.
func (s *Store) Set(key string, v float64) error {
	var val any = v
	if v == float64(int64(v)) {
		val = int64(v)
	}
	raw, err := sjson.SetBytes(s.raw, s.setPath(key), val)
	if err != nil {
		return eris.Wrapf(err, "baseline: set %s", key)
	}
	s.raw = raw
	return nil
}

// Bytes renders the store with a two-space indent.
func (s *Store) Bytes() []byte {
	return pretty.PrettyOptions(s.raw, &pretty.Options{Indent: "  "})
}

// Save refreshes meta.last_update and writes the whole file.
func (s *Store) Save(now time.Time) error {
	raw, err := sjson.SetBytes(s.raw, LastUpdateKey, now.Format("2006-01-02"))
	if err != nil {
		return eris.Wrap(err, "baseline: set last_update")
	}
	s.raw = raw
	if err := os.WriteFile(s.path, s.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "baseline: write %s", s.path)
	}
	zap.L().Info("baseline: saved", zap.String("path", s.path))
	return nil
}

// escapePath escapes gjson wildcard characters inside a dotted key.
func escapePath(key string) string {
	r := strings.NewReplacer("*", `\*`, "?", `\?`)
	return r.Replace(key)
}

// setPath converts a dotted key into an sjson path. Numeric segments address
// array elements only when the existing parent is an array; otherwise they
// are forced to object keys so "smic_horaire.2025" never creates an array.
func (s *Store) setPath(key string) string {
	parts := strings.Split(escapePath(key), ".")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p
		if _, err := strconv.Atoi(p); err != nil {
			continue
		}
		if i > 0 && gjson.GetBytes(s.raw, strings.Join(parts[:i], ".")).IsArray() {
			continue
		}
		out[i] = ":" + p
	}
	return strings.Join(out, ".")
}
