package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/fumocord/fumobot/fumobot/database/models"
	"github.com/fumocord/fumobot/fumobot/economy/trading"
	"github.com/uptrace/bun"
)

// TradeStore backs the trading core: read-side checks while offers are
// built, and the atomic settlement transaction once both sides confirm.
type TradeStore interface {
	trading.StoreReader
	trading.Settler
}

type tradeStore struct {
	db *bun.DB
}

func NewTradeStore(db *bun.DB) TradeStore {
	return &tradeStore{db: db}
}

func (r *tradeStore) GetBalances(ctx context.Context, userID string) (map[trading.Currency]int64, error) {
	var user models.User
	err := r.db.NewSelect().
		Model(&user).
		Column("coins", "gems").
		Where("discord_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return map[trading.Currency]int64{}, nil
		}
		return nil, fmt.Errorf("failed to get balances: %w", err)
	}
	return map[trading.Currency]int64{
		trading.CurrencyCoins: user.Coins,
		trading.CurrencyGems:  user.Gems,
	}, nil
}

func (r *tradeStore) GetItemQuantity(ctx context.Context, userID, itemID string) (int64, error) {
	var userItem models.UserItem
	err := r.db.NewSelect().
		Model(&userItem).
		Column("quantity").
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get item quantity: %w", err)
	}
	return userItem.Quantity, nil
}

func (r *tradeStore) OwnsPet(ctx context.Context, userID string, petID int64) (bool, error) {
	return r.db.NewSelect().
		Model((*models.Pet)(nil)).
		Where("id = ? AND owner_id = ?", petID, userID).
		Exists(ctx)
}

func (r *tradeStore) GetFumoRows(ctx context.Context, userID, name string) ([]trading.FumoRow, error) {
	var rows []*models.UserFumo
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ? AND fumo_name = ?", userID, name).
		Where("quantity > 0").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get fumo rows: %w", err)
	}
	out := make([]trading.FumoRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, trading.FumoRow{RowID: row.ID, Quantity: row.Quantity})
	}
	return out, nil
}

// Settle applies the whole mutation plan inside one serializable
// transaction. Every guarded update checks rows-affected, so a
// concurrent external mutation that invalidates a precondition fails the
// whole settlement with no partial effects.
func (r *tradeStore) Settle(ctx context.Context, s *trading.Session, plan []trading.Mutation) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range plan {
		if err := r.apply(ctx, tx, m); err != nil {
			return err
		}
	}

	record := &models.TradeRecord{
		TradeKey:    s.Key,
		UserA:       s.SideA.UserID,
		UserB:       s.SideB.UserID,
		Summary:     tradeSummary(s),
		CompletedAt: time.Now(),
	}
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}

	slog.Info("Settlement committed",
		slog.String("type", "db"),
		slog.String("trade_key", s.Key),
		slog.Int("mutations", len(plan)))
	return nil
}

func (r *tradeStore) apply(ctx context.Context, tx bun.Tx, m trading.Mutation) error {
	switch m.Op {
	case trading.OpDebitCurrency:
		return r.adjustCurrency(ctx, tx, m.UserID, m.Currency, -m.Amount, true)
	case trading.OpCreditCurrency:
		return r.adjustCurrency(ctx, tx, m.UserID, m.Currency, m.Amount, false)

	case trading.OpRemoveItem:
		res, err := tx.NewUpdate().
			Model((*models.UserItem)(nil)).
			Set("quantity = quantity - ?", m.Amount).
			Set("updated_at = ?", time.Now()).
			Where("user_id = ? AND item_id = ? AND quantity >= ?", m.UserID, m.ItemID, m.Amount).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to remove item %s: %w", m.ItemID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("item %s no longer sufficient for %s", m.ItemID, m.UserID)
		}
		_, err = tx.NewDelete().
			Model((*models.UserItem)(nil)).
			Where("user_id = ? AND item_id = ? AND quantity <= 0", m.UserID, m.ItemID).
			Exec(ctx)
		return err

	case trading.OpAddItem:
		res, err := tx.NewUpdate().
			Model((*models.UserItem)(nil)).
			Set("quantity = quantity + ?", m.Amount).
			Set("updated_at = ?", time.Now()).
			Where("user_id = ? AND item_id = ?", m.UserID, m.ItemID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to credit item %s: %w", m.ItemID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			userItem := &models.UserItem{
				UserID:     m.UserID,
				ItemID:     m.ItemID,
				Quantity:   m.Amount,
				ObtainedAt: time.Now(),
				UpdatedAt:  time.Now(),
			}
			if _, err := tx.NewInsert().Model(userItem).Exec(ctx); err != nil {
				return fmt.Errorf("failed to create item entry %s: %w", m.ItemID, err)
			}
		}
		return nil

	case trading.OpDeductFumoRow:
		res, err := tx.NewUpdate().
			Model((*models.UserFumo)(nil)).
			Set("quantity = quantity - ?", m.Amount).
			Set("updated_at = ?", time.Now()).
			Where("id = ? AND quantity >= ?", m.RowID, m.Amount).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to deduct fumo row %d: %w", m.RowID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("fumo row %d no longer holds %d %s", m.RowID, m.Amount, m.FumoName)
		}
		_, err = tx.NewDelete().
			Model((*models.UserFumo)(nil)).
			Where("id = ? AND quantity <= 0", m.RowID).
			Exec(ctx)
		return err

	case trading.OpAddFumo:
		row := &models.UserFumo{
			UserID:     m.UserID,
			FumoName:   m.FumoName,
			Quantity:   m.Amount,
			ObtainedAt: time.Now(),
			UpdatedAt:  time.Now(),
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("failed to credit fumo %s: %w", m.FumoName, err)
		}
		return nil

	case trading.OpReassignPet:
		res, err := tx.NewUpdate().
			Model((*models.Pet)(nil)).
			Set("owner_id = ?", m.UserID).
			Set("updated_at = ?", time.Now()).
			Where("id = ? AND owner_id = ?", m.PetID, m.FromUserID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to reassign pet %d: %w", m.PetID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("pet %d is no longer owned by %s", m.PetID, m.FromUserID)
		}
		return nil
	}

	return fmt.Errorf("unknown mutation op %q", m.Op)
}

func (r *tradeStore) adjustCurrency(ctx context.Context, tx bun.Tx, userID string, kind trading.Currency, delta int64, guarded bool) error {
	var column string
	switch kind {
	case trading.CurrencyCoins:
		column = "coins"
	case trading.CurrencyGems:
		column = "gems"
	default:
		return fmt.Errorf("unknown currency %q", kind)
	}

	q := tx.NewUpdate().
		Model((*models.User)(nil)).
		Set(column+" = "+column+" + ?", delta).
		Set("updated_at = ?", time.Now()).
		Where("discord_id = ?", userID)
	if guarded {
		q = q.Where(column+" >= ?", -delta)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to adjust %s for %s: %w", column, userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s balance of %s no longer covers %d", column, userID, -delta)
	}
	return nil
}

func tradeSummary(s *trading.Session) string {
	return fmt.Sprintf("%s(%d items, %d pets, %d fumos) <-> %s(%d items, %d pets, %d fumos)",
		s.SideA.UserID, len(s.SideA.Items), len(s.SideA.Pets), len(s.SideA.Fumos),
		s.SideB.UserID, len(s.SideB.Items), len(s.SideB.Pets), len(s.SideB.Fumos))
}
