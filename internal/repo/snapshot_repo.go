package repo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/H0NEYP0T-466/RAGbot/internal/db"
	"github.com/H0NEYP0T-466/RAGbot/internal/model"
	appErr "github.com/H0NEYP0T-466/RAGbot/internal/pkg/errors"
)

const (
	metaModelName     = "model_name"
	metaDimension     = "dimension"
	metaLastIndexed   = "last_indexed"
	metaJournalOffset = "journal_offset"

	snapshotInsertBatch = 200
)

var entryColumns = []string{"position", "chunk_id", "content", "source", "source_type", "page", "embedding"}

// SnapshotRepo stores the whole vector index in a standalone sqlite file.
// Saves go to a sibling temp file that replaces the target by rename, so a
// crash mid-write leaves the previous snapshot intact.
type SnapshotRepo struct {
	path string
}

func NewSnapshotRepo(path string) *SnapshotRepo {
	return &SnapshotRepo{path: path}
}

func (r *SnapshotRepo) Path() string {
	return r.path
}

func (r *SnapshotRepo) Save(ctx context.Context, snap *model.IndexSnapshot) error {
	tmp := r.path + ".tmp"
	_ = os.Remove(tmp)
	if err := r.write(ctx, tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) write(ctx context.Context, path string, snap *model.IndexSnapshot) error {
	conn, err := db.OpenWithSchema(ctx, path, db.SchemaIndex)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	meta := []map[string]interface{}{
		{"meta_key": metaModelName, "meta_value": snap.ModelName},
		{"meta_key": metaDimension, "meta_value": strconv.Itoa(snap.Dimension)},
		{"meta_key": metaLastIndexed, "meta_value": snap.LastIndexed.UTC().Format(time.RFC3339Nano)},
		{"meta_key": metaJournalOffset, "meta_value": strconv.FormatInt(snap.JournalOffset, 10)},
	}
	sqlStr, args, err := builder.BuildInsert("index_meta", meta)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("write snapshot meta: %w", err)
	}

	rows := make([]map[string]interface{}, 0, snapshotInsertBatch)
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		sqlStr, args, err := builder.BuildInsert("index_entries", rows)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("write snapshot entries: %w", err)
		}
		rows = rows[:0]
		return nil
	}
	for i, entry := range snap.Entries {
		blob, err := encodeVector(entry.Embedding)
		if err != nil {
			return err
		}
		var page interface{}
		if entry.Chunk.Metadata.Page != nil {
			page = *entry.Chunk.Metadata.Page
		}
		rows = append(rows, map[string]interface{}{
			"position":    i,
			"chunk_id":    entry.Chunk.ID,
			"content":     entry.Chunk.Content,
			"source":      entry.Chunk.Metadata.Source,
			"source_type": string(entry.Chunk.Metadata.Type),
			"page":        page,
			"embedding":   blob,
		})
		if len(rows) >= snapshotInsertBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return tx.Commit()
}

// Load reads the snapshot. It returns ErrNotFound when no snapshot file
// exists; any other error means the file is unreadable.
func (r *SnapshotRepo) Load(ctx context.Context) (*model.IndexSnapshot, error) {
	if _, err := os.Stat(r.path); err != nil {
		if os.IsNotExist(err) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	conn, err := db.Open(ctx, r.path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer conn.Close()

	snap := &model.IndexSnapshot{}
	if err := readMeta(ctx, conn, snap); err != nil {
		return nil, err
	}
	entries, err := readEntries(ctx, conn)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if len(entries[i].Embedding) != snap.Dimension {
			return nil, fmt.Errorf("snapshot entry %d has dimension %d, expected %d", i, len(entries[i].Embedding), snap.Dimension)
		}
	}
	snap.Entries = entries
	return snap, nil
}

func readMeta(ctx context.Context, conn *sql.DB, snap *model.IndexSnapshot) error {
	sqlStr, args, err := builder.BuildSelect("index_meta", map[string]interface{}{}, []string{"meta_key", "meta_value"})
	if err != nil {
		return err
	}
	rows, err := conn.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("read snapshot meta: %w", err)
	}
	defer rows.Close()
	meta := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		meta[key] = value
	}
	if err := rows.Err(); err != nil {
		return err
	}
	snap.ModelName = meta[metaModelName]
	if snap.Dimension, err = strconv.Atoi(meta[metaDimension]); err != nil {
		return fmt.Errorf("snapshot dimension: %w", err)
	}
	if v := meta[metaLastIndexed]; v != "" {
		if snap.LastIndexed, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return fmt.Errorf("snapshot last_indexed: %w", err)
		}
	}
	if v := meta[metaJournalOffset]; v != "" {
		if snap.JournalOffset, err = strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("snapshot journal_offset: %w", err)
		}
	}
	return nil
}

func readEntries(ctx context.Context, conn *sql.DB) ([]model.ChunkEmbedding, error) {
	where := map[string]interface{}{"_orderby": "position asc"}
	sqlStr, args, err := builder.BuildSelect("index_entries", where, entryColumns)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("read snapshot entries: %w", err)
	}
	defer rows.Close()
	var entries []model.ChunkEmbedding
	for rows.Next() {
		var (
			item       model.ChunkEmbedding
			sourceType string
			page       sql.NullInt64
			blob       []byte
		)
		if err := rows.Scan(&item.Position, &item.Chunk.ID, &item.Chunk.Content, &item.Chunk.Metadata.Source, &sourceType, &page, &blob); err != nil {
			return nil, err
		}
		item.Chunk.Metadata.Type = model.SourceType(sourceType)
		if page.Valid {
			item.Chunk.Metadata.Page = model.PageOf(int(page.Int64))
		}
		if item.Embedding, err = decodeVector(blob); err != nil {
			return nil, err
		}
		entries = append(entries, item)
	}
	return entries, rows.Err()
}
