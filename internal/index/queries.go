package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rusty-ferris-club/recon/internal/sqlutil"
)

// baseColumns are the columns written during the walk stage. Enrichment
// columns are deliberately absent: re-walking an existing store must not
// clobber previously computed fields, or resumed runs would lose their work.
var baseColumns = []string{
	"entry_time", "abs_path", "path", "ext", "mode",
	"is_dir", "is_file", "is_symlink", "is_empty", "size",
	"user", `"group"`, "uid", "gid",
	"atime", "mtime", "ctime",
	"is_archive", "is_document", "is_media", "is_code", "is_ignored",
}

var upsertSQL = buildUpsertSQL()

func buildUpsertSQL() string {
	holders := strings.TrimSuffix(strings.Repeat("?, ", len(baseColumns)), ", ")
	sets := make([]string, len(baseColumns))
	for i, c := range baseColumns {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	return fmt.Sprintf(
		"INSERT INTO files (%s) VALUES (%s) ON CONFLICT(abs_path) DO UPDATE SET %s",
		strings.Join(baseColumns, ", "), holders, strings.Join(sets, ", "),
	)
}

func baseArgs(r *FileRow) []any {
	return []any{
		r.EntryTime, r.AbsPath, r.Path, r.Ext, r.Mode,
		r.IsDir, r.IsFile, r.IsSymlink, r.IsEmpty, r.Size,
		r.User, r.Group, r.UID, r.GID,
		r.Atime, r.Mtime, r.Ctime,
		r.IsArchive, r.IsDocument, r.IsMedia, r.IsCode, r.IsIgnored,
	}
}

// UpsertBatch writes a batch of base rows in one transaction. New rows start
// with computed = 0; rows that already exist keep their enrichment columns
// and computed flag, with metadata and entry_time refreshed.
func (d *Database) UpsertBatch(rows []*FileRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	stmt, err := tx.Prepare(upsertSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(baseArgs(r)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert %s: %w", r.AbsPath, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert batch: %w", err)
	}
	return nil
}

// SelectCandidates runs the selection query and materializes the result into
// file rows. Columns the query does not return are left at their zero value;
// extra columns are dropped.
func (d *Database) SelectCandidates(query string) ([]*FileRow, error) {
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("selection query failed: %s: %w", query, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("selection query failed: %s: %w", query, err)
	}

	return sqlutil.ScanRows(rows, func(rows *sql.Rows) (*FileRow, error) {
		vals := make([]any, len(cols))
		for i := range vals {
			vals[i] = new(any)
		}
		if err := rows.Scan(vals...); err != nil {
			return nil, err
		}
		r := &FileRow{}
		for i, c := range cols {
			r.setColumn(c, *(vals[i].(*any)))
		}
		return r, nil
	})
}

var enrichColumns = []string{
	"entry_time",
	"is_binary", "bytes_type", "file_magic",
	"crc32", "sha256", "sha512", "md5", "simhash",
	"crc32_match", "sha256_match", "sha512_match", "md5_match",
	"simhash_match", "path_match", "content_match", "yara_match",
}

var enrichSQL = buildEnrichSQL()

func buildEnrichSQL() string {
	sets := make([]string, len(enrichColumns))
	for i, c := range enrichColumns {
		sets[i] = c + " = ?"
	}
	return fmt.Sprintf("UPDATE files SET %s, computed = 1 WHERE ", strings.Join(sets, ", "))
}

// ApplyEnrichment writes a row's computed fields back and flips computed in
// the same statement, so a reader never observes a half-enriched row.
func (d *Database) ApplyEnrichment(r *FileRow) error {
	args := []any{
		r.EntryTime,
		r.IsBinary, r.BytesType, r.FileMagic,
		r.CRC32, r.SHA256, r.SHA512, r.MD5, r.Simhash,
		r.CRC32Match, r.SHA256Match, r.SHA512Match, r.MD5Match,
		r.SimhashMatch, r.PathMatch, r.ContentMatch, r.YaraMatch,
	}
	q := enrichSQL
	if r.ID > 0 {
		q += "id = ?"
		args = append(args, r.ID)
	} else {
		q += "abs_path = ?"
		args = append(args, r.AbsPath)
	}
	if _, err := d.db.Exec(q, args...); err != nil {
		return fmt.Errorf("failed to update %s: %w", r.AbsPath, err)
	}
	return nil
}

// ValuesTable is a table of result values for a query, used for dynamic
// display and export.
type ValuesTable struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	TotalRows int64    `json:"total_rows"`
}

// QueryTable runs a user-supplied query verbatim and returns the result set
// with JSON-friendly cell values. TotalRows carries the full table count for
// the summary line.
func (d *Database) QueryTable(query string) (*ValuesTable, error) {
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %s: %w", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query failed: %s: %w", query, err)
	}

	vt := &ValuesTable{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		for i := range vals {
			vals[i] = new(any)
		}
		if err := rows.Scan(vals...); err != nil {
			return nil, fmt.Errorf("query scan failed: %s: %w", query, err)
		}
		row := make([]any, len(cols))
		for i := range vals {
			row[i] = reprValue(*(vals[i].(*any)))
		}
		vt.Rows = append(vt.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %s: %w", query, err)
	}

	if err := d.db.QueryRow("SELECT count(*) FROM files").Scan(&vt.TotalRows); err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}
	return vt, nil
}

// reprValue converts a driver value into something encoding/json and the
// table renderer both handle.
func reprValue(val any) any {
	switch v := val.(type) {
	case []byte:
		return string(v)
	default:
		return val
	}
}
