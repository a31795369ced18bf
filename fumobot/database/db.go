package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/fumocord/fumobot/fumobot/database/models"
	"github.com/uptrace/bun"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	defaultConnTimeout   = 5 * time.Second
	defaultMaxRetries    = 3
	defaultRetryInterval = time.Second
)

type DBConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Database     string `toml:"database"`
	PoolSize     int    `toml:"pool_size"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	MaxLifetime  int    `toml:"max_lifetime"`
}

// DB pairs a pgx pool for raw SQL (DDL, health checks) with a bun.DB the
// repositories run on.
type DB struct {
	pool  *pgxpool.Pool
	bunDB *bun.DB
}

func New(ctx context.Context, cfg DBConfig) (*DB, error) {
	var conn net.Conn
	var err error

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	for i := 0; i < defaultMaxRetries; i++ {
		conn, err = net.DialTimeout("tcp", addr, defaultConnTimeout)
		if err == nil {
			break
		}
		time.Sleep(defaultRetryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("database server unreachable after %d attempts: %w", defaultMaxRetries, err)
	}
	defer conn.Close()

	poolConfig, err := pgxpool.ParseConfig(buildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxLifetime) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{pool: pool, bunDB: newBunDB(pool)}, nil
}

func buildConnString(cfg DBConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?connect_timeout=5",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)
}

func newBunDB(pool *pgxpool.Pool) *bun.DB {
	sslMode := os.Getenv("PG_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pool.Config().ConnConfig.User,
		pool.Config().ConnConfig.Password,
		pool.Config().ConnConfig.Host,
		pool.Config().ConnConfig.Port,
		pool.Config().ConnConfig.Database,
		sslMode,
	)

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func (db *DB) GetPool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) BunDB() *bun.DB {
	return db.bunDB
}

func (db *DB) ExecWithLog(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	start := time.Now()
	result, err := db.pool.Exec(ctx, sql, args...)
	duration := time.Since(start)

	if err != nil {
		slog.Error("Query failed",
			slog.String("type", "db"),
			slog.String("operation", "exec"),
			slog.String("query", sql),
			slog.Duration("took", duration),
			slog.Any("error", err),
		)
		return result, err
	}

	slog.Debug("Query executed",
		slog.String("type", "db"),
		slog.String("operation", "exec"),
		slog.String("query", sql),
		slog.Duration("took", duration),
		slog.Int64("affected_rows", result.RowsAffected()),
	)
	return result, nil
}

func (db *DB) QueryWithLog(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	start := time.Now()
	rows, err := db.pool.Query(ctx, sql, args...)
	duration := time.Since(start)

	if err != nil {
		slog.Error("Query failed",
			slog.String("type", "db"),
			slog.String("operation", "query"),
			slog.String("query", sql),
			slog.Duration("took", duration),
			slog.Any("error", err),
		)
		return rows, err
	}

	slog.Debug("Query executed",
		slog.String("type", "db"),
		slog.String("operation", "query"),
		slog.String("query", sql),
		slog.Duration("took", duration),
	)
	return rows, nil
}

func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
	if db.bunDB != nil {
		db.bunDB.Close()
	}
}

// Ping verifies both database connections are working.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pgxpool ping failed: %w", err)
	}
	if err := db.bunDB.PingContext(ctx); err != nil {
		return fmt.Errorf("bun ping failed: %w", err)
	}
	return nil
}

// InitializeSchema creates all required tables, indexes and seed data.
func (db *DB) InitializeSchema(ctx context.Context) error {
	if err := db.ensureUTF8Encoding(ctx); err != nil {
		return fmt.Errorf("failed to ensure UTF-8 encoding: %w", err)
	}

	// Table order matters for foreign key constraints.
	tables := []interface{}{
		(*models.User)(nil),
		(*models.Item)(nil),
		(*models.UserItem)(nil),
		(*models.Pet)(nil),
		(*models.Fumo)(nil),
		(*models.UserFumo)(nil),
		(*models.TradeRecord)(nil),
	}

	for _, model := range tables {
		_, err := db.bunDB.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_users_discord_id ON users(discord_id);",
		"CREATE INDEX IF NOT EXISTS idx_user_items_user_id ON user_items(user_id);",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_user_items_user_item ON user_items(user_id, item_id);",
		"CREATE INDEX IF NOT EXISTS idx_items_type ON items(type);",
		"CREATE INDEX IF NOT EXISTS idx_pets_owner_id ON pets(owner_id);",
		"CREATE INDEX IF NOT EXISTS idx_fumos_rarity ON fumos(rarity);",
		// Settlement walks batch rows by (user, name) in id order; the
		// partial index keeps drained rows out of the scan.
		"CREATE INDEX IF NOT EXISTS idx_user_fumos_user_name ON user_fumos(user_id, fumo_name, id) WHERE quantity > 0;",
		"CREATE INDEX IF NOT EXISTS idx_trade_records_users ON trade_records(user_a, user_b);",
		"CREATE INDEX IF NOT EXISTS idx_trade_records_completed_at ON trade_records(completed_at);",
	}

	for _, idx := range indexes {
		if _, err := db.ExecWithLog(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := db.InitializeItemData(ctx); err != nil {
		return fmt.Errorf("failed to initialize item data: %w", err)
	}
	if err := db.InitializeFumoData(ctx); err != nil {
		return fmt.Errorf("failed to initialize fumo data: %w", err)
	}

	return nil
}

// ensureUTF8Encoding checks the server encoding and forces the client
// session to UTF-8.
func (db *DB) ensureUTF8Encoding(ctx context.Context) error {
	var encoding string
	err := db.pool.QueryRow(ctx, "SHOW server_encoding;").Scan(&encoding)
	if err != nil {
		return fmt.Errorf("failed to check database encoding: %w", err)
	}

	if encoding != "UTF8" {
		slog.Warn("Database is not using UTF-8 encoding, this may cause character encoding issues",
			"current_encoding", encoding,
			"recommended", "UTF8")
	}

	if _, err = db.pool.Exec(ctx, "SET client_encoding TO 'UTF8';"); err != nil {
		return fmt.Errorf("failed to set client encoding to UTF-8: %w", err)
	}
	return nil
}

// InitializeItemData inserts the default tradeable items.
func (db *DB) InitializeItemData(ctx context.Context) error {
	var itemCount int
	err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM items WHERE id IN ('sunflower', 'spell_card', 'sake_dish')").Scan(&itemCount)
	if err == nil && itemCount >= 3 {
		slog.Info("Item data already initialized, skipping")
		return nil
	}

	items := []struct {
		ID          string
		Name        string
		Description string
		Emoji       string
		Type        string
		Rarity      int
		MaxStack    int
	}{
		{
			ID:          "sunflower",
			Name:        "Sunflower",
			Description: "A bright sunflower from the garden of the sun.",
			Emoji:       "\U0001F33B",
			Type:        "material",
			Rarity:      1,
			MaxStack:    999,
		},
		{
			ID:          "spell_card",
			Name:        "Spell Card",
			Description: "A declared spell card. The rules of engagement, written down.",
			Emoji:       "\U0001F4DC",
			Type:        "material",
			Rarity:      3,
			MaxStack:    999,
		},
		{
			ID:          "sake_dish",
			Name:        "Sake Dish",
			Description: "A shallow dish that never seems to stay full.",
			Emoji:       "\U0001F376",
			Type:        "material",
			Rarity:      2,
			MaxStack:    999,
		},
	}

	insertSQL := `
		INSERT INTO items (id, name, description, emoji, type, rarity, max_stack, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP;
	`
	for _, item := range items {
		_, err := db.ExecWithLog(ctx, insertSQL,
			item.ID, item.Name, item.Description, item.Emoji,
			item.Type, item.Rarity, item.MaxStack)
		if err != nil {
			return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
		}
	}

	slog.Info("Initial item data initialized successfully")
	return nil
}

// InitializeFumoData upserts the fumo drop table definitions.
func (db *DB) InitializeFumoData(ctx context.Context) error {
	fumos := []struct {
		Name     string
		Rarity   int
		ImageKey string
	}{
		{"Cirno", 1, "fumos/cirno.png"},
		{"Rumia", 1, "fumos/rumia.png"},
		{"Chen", 1, "fumos/chen.png"},
		{"Reimu", 2, "fumos/reimu.png"},
		{"Marisa", 2, "fumos/marisa.png"},
		{"Sanae", 2, "fumos/sanae.png"},
		{"Sakuya", 3, "fumos/sakuya.png"},
		{"Youmu", 3, "fumos/youmu.png"},
		{"Koishi", 3, "fumos/koishi.png"},
		{"Remilia", 4, "fumos/remilia.png"},
		{"Flandre", 4, "fumos/flandre.png"},
		{"Yukari", 5, "fumos/yukari.png"},
	}

	insertSQL := `
		INSERT INTO fumos (name, rarity, image_key, created_at, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE SET
			rarity = EXCLUDED.rarity,
			image_key = EXCLUDED.image_key,
			updated_at = CURRENT_TIMESTAMP;
	`
	for _, f := range fumos {
		if _, err := db.ExecWithLog(ctx, insertSQL, f.Name, f.Rarity, f.ImageKey); err != nil {
			return fmt.Errorf("failed to upsert fumo %s: %w", f.Name, err)
		}
	}

	slog.Info("Fumo definitions initialized/updated successfully", slog.Int("count", len(fumos)))
	return nil
}
