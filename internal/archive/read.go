package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/rws/internal/knob"
	"github.com/roach88/rws/internal/knobfile"
)

// ErrNotFound is returned by Get for an unknown entry id.
var ErrNotFound = errors.New("archive entry not found")

// Entry describes one archived knob file.
type Entry struct {
	ID        string        `json:"id"`
	Hash      string        `json:"content_hash"`
	Kind      knobfile.Kind `json:"kind"`
	Path      string        `json:"path"`
	Meta      knob.Metadata `json:"meta"`
	Circuits  int           `json:"circuits"`
	CreatedAt time.Time     `json:"created_at"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Beam     int
	Scenario string
	Label    string
	Limit    int
}

const entryColumns = `id, content_hash, kind, path, beam, ip, energy, scenario, label, circuit_count, created_at`

// Get returns an archived entry and its knob set, knobs in their original
// order.
func (a *Archive) Get(ctx context.Context, id string) (Entry, *knob.Set, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM knob_files WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Entry{}, nil, fmt.Errorf("get %s: %w", id, err)
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT circuit, delta FROM knobs
		WHERE file_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return Entry{}, nil, fmt.Errorf("query knobs: %w", err)
	}
	defer rows.Close()

	var knobs []knob.Knob
	for rows.Next() {
		var k knob.Knob
		if err := rows.Scan(&k.Circuit, &k.Delta); err != nil {
			return Entry{}, nil, fmt.Errorf("scan knob: %w", err)
		}
		knobs = append(knobs, k)
	}
	if err := rows.Err(); err != nil {
		return Entry{}, nil, fmt.Errorf("iterate knobs: %w", err)
	}

	set, err := knob.NewSet(e.Meta, knobs...)
	if err != nil {
		return Entry{}, nil, fmt.Errorf("rebuild set %s: %w", id, err)
	}
	return e, set, nil
}

// List returns the matching entries, newest first.
func (a *Archive) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Beam != 0 {
		where = append(where, "beam = ?")
		args = append(args, f.Beam)
	}
	if f.Scenario != "" {
		where = append(where, "scenario = ?")
		args = append(args, f.Scenario)
	}
	if f.Label != "" {
		where = append(where, "label = ?")
		args = append(args, f.Label)
	}

	query := `SELECT ` + entryColumns + ` FROM knob_files`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id COLLATE BINARY DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e       Entry
		kind    string
		created int64
	)
	err := s.Scan(
		&e.ID,
		&e.Hash,
		&kind,
		&e.Path,
		&e.Meta.Beam,
		&e.Meta.IP,
		&e.Meta.Energy,
		&e.Meta.Scenario,
		&e.Meta.Label,
		&e.Circuits,
		&created,
	)
	if err != nil {
		return Entry{}, err
	}
	e.Kind = knobfile.Kind(kind)
	e.CreatedAt = time.Unix(0, created).UTC()
	return e, nil
}
