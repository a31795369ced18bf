package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/fumocord/fumobot/fumobot/database/models"
)

// Migrator imports the predecessor bot's MongoDB data into Postgres.
// Users are imported first for referential sanity; the independent
// collections (pets, fumo holdings) then run in parallel.
type Migrator struct {
	pgDB      *bun.DB
	mongoDB   *mongo.Database
	batchSize int

	startTime time.Time
	imported  map[string]int
}

func NewMigrator(pgDB *bun.DB) *Migrator {
	return &Migrator{
		pgDB:      pgDB,
		batchSize: 1000,
		imported:  make(map[string]int),
	}
}

// UseMongo points the migrator at the legacy database.
func (m *Migrator) UseMongo(client *mongo.Client, dbName string) {
	if client != nil && dbName != "" {
		m.mongoDB = client.Database(dbName)
	}
}

func (m *Migrator) SetBatchSize(size int) {
	if size > 0 {
		m.batchSize = size
	}
}

// Legacy document shapes. The old bot stored everything keyed by the
// Discord id as a string.
type legacyUser struct {
	DiscordID string    `bson:"discord_id"`
	Username  string    `bson:"username"`
	Coins     int64     `bson:"coins"`
	Gems      int64     `bson:"gems"`
	Joined    time.Time `bson:"joined"`
}

type legacyPet struct {
	OwnerID   string    `bson:"owner_id"`
	Name      string    `bson:"name"`
	Species   string    `bson:"species"`
	Level     int       `bson:"level"`
	AdoptedAt time.Time `bson:"adopted_at"`
}

type legacyFumo struct {
	UserID     string    `bson:"user_id"`
	Name       string    `bson:"name"`
	Count      int64     `bson:"count"`
	ObtainedAt time.Time `bson:"obtained_at"`
}

func (m *Migrator) MigrateAll(ctx context.Context) error {
	if m.mongoDB == nil {
		return fmt.Errorf("mongoDB not configured; call UseMongo first")
	}

	m.startTime = time.Now()
	slog.Info("Starting legacy migration", slog.String("type", "db"))

	if err := m.migrateUsers(ctx); err != nil {
		return fmt.Errorf("migration failed at step users: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.migratePets(gctx) })
	g.Go(func() error { return m.migrateFumos(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Migration completed",
		slog.String("type", "db"),
		slog.Int("users", m.imported["users"]),
		slog.Int("pets", m.imported["pets"]),
		slog.Int("fumos", m.imported["fumos"]),
		slog.Duration("took", time.Since(m.startTime)))
	return nil
}

func (m *Migrator) migrateUsers(ctx context.Context) error {
	cursor, err := m.mongoDB.Collection("users").Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to query legacy users: %w", err)
	}
	defer cursor.Close(ctx)

	var batch []*models.User
	for cursor.Next(ctx) {
		var doc legacyUser
		if err := cursor.Decode(&doc); err != nil {
			slog.Warn("Skipping malformed legacy user", slog.Any("error", err))
			continue
		}
		if doc.DiscordID == "" {
			continue
		}

		now := time.Now()
		batch = append(batch, &models.User{
			DiscordID: doc.DiscordID,
			Username:  doc.Username,
			Coins:     doc.Coins,
			Gems:      doc.Gems,
			CreatedAt: pickTime(doc.Joined, now),
			UpdatedAt: now,
		})
		if len(batch) >= m.batchSize {
			if err := m.flushUsers(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := m.flushUsers(ctx, batch); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (m *Migrator) flushUsers(ctx context.Context, batch []*models.User) error {
	_, err := m.pgDB.NewInsert().
		Model(&batch).
		On("CONFLICT (discord_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert user batch: %w", err)
	}
	m.imported["users"] += len(batch)
	return nil
}

func (m *Migrator) migratePets(ctx context.Context) error {
	cursor, err := m.mongoDB.Collection("pets").Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to query legacy pets: %w", err)
	}
	defer cursor.Close(ctx)

	var batch []*models.Pet
	for cursor.Next(ctx) {
		var doc legacyPet
		if err := cursor.Decode(&doc); err != nil {
			slog.Warn("Skipping malformed legacy pet", slog.Any("error", err))
			continue
		}
		if doc.OwnerID == "" || doc.Name == "" {
			continue
		}

		now := time.Now()
		batch = append(batch, &models.Pet{
			OwnerID:   doc.OwnerID,
			Name:      doc.Name,
			Species:   doc.Species,
			Level:     doc.Level,
			AdoptedAt: pickTime(doc.AdoptedAt, now),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if len(batch) >= m.batchSize {
			if err := m.flushPets(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := m.flushPets(ctx, batch); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (m *Migrator) flushPets(ctx context.Context, batch []*models.Pet) error {
	_, err := m.pgDB.NewInsert().
		Model(&batch).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert pet batch: %w", err)
	}
	m.imported["pets"] += len(batch)
	return nil
}

// migrateFumos imports legacy holdings. Each legacy count becomes one
// batch row; the trading core's per-row deduction takes it from there.
func (m *Migrator) migrateFumos(ctx context.Context) error {
	cursor, err := m.mongoDB.Collection("fumos").Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to query legacy fumos: %w", err)
	}
	defer cursor.Close(ctx)

	var batch []*models.UserFumo
	for cursor.Next(ctx) {
		var doc legacyFumo
		if err := cursor.Decode(&doc); err != nil {
			slog.Warn("Skipping malformed legacy fumo", slog.Any("error", err))
			continue
		}
		if doc.UserID == "" || doc.Name == "" || doc.Count <= 0 {
			continue
		}

		now := time.Now()
		batch = append(batch, &models.UserFumo{
			UserID:     doc.UserID,
			FumoName:   doc.Name,
			Quantity:   doc.Count,
			ObtainedAt: pickTime(doc.ObtainedAt, now),
			UpdatedAt:  now,
		})
		if len(batch) >= m.batchSize {
			if err := m.flushFumos(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := m.flushFumos(ctx, batch); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (m *Migrator) flushFumos(ctx context.Context, batch []*models.UserFumo) error {
	_, err := m.pgDB.NewInsert().
		Model(&batch).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert fumo batch: %w", err)
	}
	m.imported["fumos"] += len(batch)
	return nil
}

func pickTime(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}
