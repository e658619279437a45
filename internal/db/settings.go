package db

import (
	"context"
	"fmt"
)

// Well-known settings keys.
const (
	SettingDepositBanks     = "deposit_banks_enabled" // comma-separated bank names
	SettingDepositsEnabled  = "deposits_enabled"
	SettingMaxDepositAmount = "max_deposit_amount"
)

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := d.Pool.Exec(ctx, `
INSERT INTO settings (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
`, key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

func (d *DB) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := d.Pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("all settings: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// EnsureBotUser records a chat the bot has seen so broadcasts can reach it.
func (d *DB) EnsureBotUser(ctx context.Context, chatID int64, username string) error {
	_, err := d.Pool.Exec(ctx, `
INSERT INTO bot_users (chat_id, username) VALUES ($1, $2)
ON CONFLICT (chat_id) DO UPDATE SET username = EXCLUDED.username
`, chatID, username)
	if err != nil {
		return fmt.Errorf("ensure bot user: %w", err)
	}
	return nil
}

func (d *DB) AllChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := d.Pool.Query(ctx, `SELECT chat_id FROM bot_users ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("all chat ids: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
