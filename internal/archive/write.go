package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/rws/internal/knob"
	"github.com/roach88/rws/internal/knobfile"
)

// Put records that set was written to path as a file of the given kind and
// returns the entry id. Re-archiving the same set, kind and path returns the
// existing id without writing anything. The entry and its knobs are written
// in one transaction.
func (a *Archive) Put(ctx context.Context, set *knob.Set, kind knobfile.Kind, path string) (string, error) {
	if set == nil {
		return "", fmt.Errorf("put: nil knob set")
	}
	if kind != knobfile.KindDelta && kind != knobfile.KindPowering {
		return "", fmt.Errorf("put: invalid kind %q", kind)
	}
	hash, err := knob.ContentHash(set)
	if err != nil {
		return "", fmt.Errorf("put: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("put: begin: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM knob_files
		WHERE content_hash = ? AND kind = ? AND path = ?
	`, hash, string(kind), path).Scan(&existing)
	switch {
	case err == nil:
		slog.Debug("knob file already archived", "id", existing, "path", path)
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("put: lookup: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("put: generate id: %w", err)
	}

	meta := set.Meta()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO knob_files
		(id, content_hash, kind, path, beam, ip, energy, scenario, label, circuit_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id.String(),
		hash,
		string(kind),
		path,
		meta.Beam,
		meta.IP,
		meta.Energy,
		meta.Scenario,
		meta.Label,
		set.Len(),
		a.now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("put: insert entry: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO knobs (file_id, position, circuit, delta) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("put: prepare knobs: %w", err)
	}
	defer stmt.Close()

	for i, k := range set.Knobs() {
		if _, err := stmt.ExecContext(ctx, id.String(), i, k.Circuit, k.Delta); err != nil {
			return "", fmt.Errorf("put: insert knob %s: %w", k.Circuit, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("put: commit: %w", err)
	}

	slog.Debug("archived knob file", "id", id.String(), "kind", string(kind), "path", path, "circuits", set.Len())
	return id.String(), nil
}
