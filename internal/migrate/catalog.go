package migrate

import "github.com/glimmerhq/glimmer/internal/core/domain"

// Catalog is the ordered schema history, written in the networked
// (PostgreSQL) dialect. The embedded adapter translates these scripts;
// callers must not hand-edit applied versions, only append new ones.
func Catalog() []domain.Migration {
	return []domain.Migration{
		{
			Version:     1,
			Description: "create artworks table",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS artworks (
					id TEXT PRIMARY KEY,
					title TEXT NOT NULL,
					prompt TEXT NOT NULL DEFAULT '',
					negative_prompt TEXT NOT NULL DEFAULT '',
					model TEXT NOT NULL DEFAULT '',
					image_path TEXT NOT NULL DEFAULT '',
					thumbnail_path TEXT NOT NULL DEFAULT '',
					favorite BOOLEAN NOT NULL DEFAULT FALSE,
					tags TEXT NOT NULL DEFAULT '[]',
					is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
					deleted_at TIMESTAMPTZ,
					deleted_by TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE INDEX IF NOT EXISTS idx_artworks_favorite ON artworks (favorite)`,
				`CREATE INDEX IF NOT EXISTS idx_artworks_deleted ON artworks (is_deleted)`,
				`CREATE INDEX IF NOT EXISTS idx_artworks_created_at ON artworks (created_at)`,
			},
			Down: []string{
				`DROP TABLE IF EXISTS artworks`,
			},
		},
		{
			Version:     2,
			Description: "create app_config table",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS app_config (
					kind TEXT NOT NULL,
					tenant TEXT NOT NULL DEFAULT 'default',
					value TEXT NOT NULL,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (kind, tenant)
				)`,
			},
			Down: []string{
				`DROP TABLE IF EXISTS app_config`,
			},
		},
		{
			Version:     3,
			Description: "create operation_logs table",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS operation_logs (
					id TEXT PRIMARY KEY,
					operation TEXT NOT NULL,
					entity TEXT NOT NULL DEFAULT '',
					record_id TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL,
					error TEXT NOT NULL DEFAULT '',
					duration_ms BIGINT NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE INDEX IF NOT EXISTS idx_operation_logs_created_at ON operation_logs (created_at)`,
			},
			Down: []string{
				`DROP TABLE IF EXISTS operation_logs`,
			},
		},
		{
			Version:     4,
			Description: "add generation metadata to artworks",
			Up: []string{
				`ALTER TABLE artworks ADD COLUMN width INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE artworks ADD COLUMN height INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE artworks ADD COLUMN seed BIGINT NOT NULL DEFAULT 0`,
			},
			Down: []string{
				`ALTER TABLE artworks DROP COLUMN width`,
				`ALTER TABLE artworks DROP COLUMN height`,
				`ALTER TABLE artworks DROP COLUMN seed`,
			},
		},
	}
}

// Requirements lists the tables and columns the application depends
// on, checked by integrity validation.
func Requirements() []domain.TableRequirement {
	return []domain.TableRequirement{
		{
			Table: "artworks",
			Columns: []string{
				"id", "title", "prompt", "model", "image_path", "favorite",
				"tags", "is_deleted", "deleted_at", "deleted_by",
				"created_at", "updated_at", "width", "height", "seed",
			},
		},
		{
			Table:   "app_config",
			Columns: []string{"kind", "tenant", "value", "updated_at"},
		},
		{
			Table: "operation_logs",
			Columns: []string{
				"id", "operation", "entity", "record_id", "status",
				"error", "duration_ms", "created_at",
			},
		},
		{
			Table:   "schema_migrations",
			Columns: []string{"version", "description", "checksum", "applied_at"},
		},
	}
}
