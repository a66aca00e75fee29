package provision

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// PasswdEntry is one account of the passwd database.
type PasswdEntry struct {
	Name  string
	UID   int
	GID   int
	Home  string
	Shell string
}

// Passwd is a read-only snapshot of the passwd database.
type Passwd struct {
	entries []PasswdEntry
}

// LoadPasswd reads the passwd file at path.
func LoadPasswd(fsys afero.Fs, path string) (*Passwd, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read user database: %w", err)
	}
	return ParsePasswd(bytes.NewReader(data))
}

// ParsePasswd parses passwd(5) lines. Comments, blank lines, short lines and
// NIS compat entries (no uid field) are skipped.
func ParsePasswd(r io.Reader) (*Passwd, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pw Passwd
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := s.Text()
		trim := strings.TrimSpace(line)
		if trim == "" || strings.HasPrefix(trim, "#") {
			continue
		}
		// Keep trailing empty fields.
		parts := strings.Split(line, ":")
		if len(parts) < 7 || parts[2] == "" {
			continue
		}
		uid, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("passwd line %d: invalid uid %q", lineNo, parts[2])
		}
		gid, err := strconv.Atoi(parts[3])
		if err != nil {
			return nil, fmt.Errorf("passwd line %d: invalid gid %q", lineNo, parts[3])
		}
		pw.entries = append(pw.entries, PasswdEntry{
			Name:  parts[0],
			UID:   uid,
			GID:   gid,
			Home:  parts[5],
			Shell: parts[6],
		})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return &pw, nil
}

// Find returns the account named name.
func (p *Passwd) Find(name string) *PasswdEntry {
	for i := range p.entries {
		if p.entries[i].Name == name {
			return &p.entries[i]
		}
	}
	return nil
}

// FindByUID returns the first account holding uid.
func (p *Passwd) FindByUID(uid int) *PasswdEntry {
	for i := range p.entries {
		if p.entries[i].UID == uid {
			return &p.entries[i]
		}
	}
	return nil
}
