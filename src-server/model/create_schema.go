package model

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
)

// Create tables and indexes if missing, and seed the system categories.
// Safe to run on every start.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range []interface{}{
			(*Category)(nil),
			(*RecurrenceRule)(nil),
			(*TimeBlock)(nil),
			(*InboxItem)(nil),
		} {
			if _, err := tx.
				NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
		}

		// one generated occurrence per (rule, date); the master block holds
		// the anchor date of its own rule so it occupies that key too
		if _, err := tx.NewCreateIndex().
			Model((*TimeBlock)(nil)).
			Unique().
			Index("time_blocks_occurrence_key").
			Column("recurrence_rule_id", "date").
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewCreateIndex().
			Model((*TimeBlock)(nil)).
			Index("time_blocks_user_date").
			Column("user_id", "date").
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewCreateIndex().
			Model((*InboxItem)(nil)).
			Index("inbox_items_user_recurring").
			Column("user_id", "is_recurring", "is_dismissed").
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewInsert().
			Model(&Category{
				ID:       FocusCategoryID,
				Name:     "Focus",
				IsSystem: true,
			}).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx); err != nil {
			return err
		}
		return nil
	}); err != nil {
		return fmt.Errorf("CreateSchema: %w", err)
	}

	return nil
}
