/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package records

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Local keeps one indented JSON file per collection in a directory.
type Local struct {
	dir string
}

func NewLocal(dir string) *Local {
	if dir == "" {
		dir = "."
	}
	return &Local{dir: dir}
}

// Path returns the file backing the named collection.
func (l *Local) Path(name string) string {
	return filepath.Join(l.dir, name+".json")
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errors.Errorf("invalid collection name %q", name)
	}
	return nil
}

// Load reads the named collection. A missing file yields an empty set and no
// error; an unreadable or unparsable file yields an empty set and the error.
func (l *Local) Load(name string) (RecordSet, error) {
	if err := validName(name); err != nil {
		return RecordSet{}, err
	}

	data, err := os.ReadFile(l.Path(name))
	switch {
	case os.IsNotExist(err):
		return RecordSet{}, nil
	case err != nil:
		return RecordSet{}, errors.Wrapf(err, "could not read %s", l.Path(name))
	}

	set := RecordSet{}
	if err := json.Unmarshal(data, &set); err != nil {
		return RecordSet{}, errors.Wrapf(err, "could not unmarshal %s", l.Path(name))
	}
	if set == nil {
		set = RecordSet{}
	}

	return set, nil
}

// Exists reports whether the named collection has a local file.
func (l *Local) Exists(name string) bool {
	if validName(name) != nil {
		return false
	}
	_, err := os.Stat(l.Path(name))
	return err == nil
}

// Save replaces the named collection's file. The file is written next to its
// destination and renamed into place.
func (l *Local) Save(name string, set RecordSet) error {
	if err := validName(name); err != nil {
		return err
	}
	if set == nil {
		set = RecordSet{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(set); err != nil {
		return errors.Wrapf(err, "could not marshal %s", name)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return errors.Wrapf(err, "could not create %s", l.dir)
	}

	tmp, err := os.CreateTemp(l.dir, "."+name+"-*.json")
	if err != nil {
		return errors.Wrapf(err, "could not create temporary file for %s", name)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "could not write to file %s", tmp.Name())
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "could not sync file %s", tmp.Name())
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "could not close file %s", tmp.Name())
	}

	if err := os.Rename(tmp.Name(), l.Path(name)); err != nil {
		return errors.Wrapf(err, "could not replace %s", l.Path(name))
	}

	return nil
}
