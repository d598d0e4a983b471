package state

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unifiprotocol/upcore/internal/types"
)

// ArbitrageRow is an arbitrage receipt as stored, with amounts rendered as
// decimal strings.
type ArbitrageRow struct {
	ReceiptID int       `json:"receipt_id"`
	CycleID   string    `json:"cycle_id"`
	Timestamp time.Time `json:"timestamp"`
	Executed  bool      `json:"executed"`
	AToB      bool      `json:"a_to_b"`
	AmountIn  string    `json:"amount_in"`
	AmountOut string    `json:"amount_out"`
	Refunded  string    `json:"refunded"`
	Reason    string    `json:"reason,omitempty"`
}

// RebalanceRow is a rebalance receipt as stored.
type RebalanceRow struct {
	ReceiptID      int       `json:"receipt_id"`
	CycleID        string    `json:"cycle_id"`
	Timestamp      time.Time `json:"timestamp"`
	Executed       bool      `json:"executed"`
	TargetLP       string    `json:"target_lp"`
	TargetRedeem   string    `json:"target_redeem"`
	TargetStrategy string    `json:"target_strategy"`
	StrategyMoved  string    `json:"strategy_moved"`
	LPMoved        string    `json:"lp_moved"`
	Reason         string    `json:"reason,omitempty"`
}

// RewardRow is a strategy reward observation as stored.
type RewardRow struct {
	RewardID  int       `json:"reward_id"`
	Timestamp time.Time `json:"timestamp"`
	Deposited string    `json:"deposited"`
	Rewards   string    `json:"rewards"`
}

// SaveArbitrageReceipt persists one arbitrage receipt for a cycle.
func SaveArbitrageReceipt(cycleID string, r types.ArbitrageReceipt) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO arbitrage_receipts
			(cycle_id, receipt_timestamp, executed, a_to_b, amount_in, amount_out, refunded, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := DB.Exec(query,
		cycleID, r.Timestamp, r.Executed, r.AToB,
		r.AmountIn.String(), r.AmountOut.String(), r.Refunded.String(), r.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to save arbitrage receipt: %w", err)
	}
	return nil
}

// SaveRebalanceReceipt persists one rebalance receipt for a cycle.
func SaveRebalanceReceipt(cycleID string, r types.RebalanceReceipt) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO rebalance_receipts
			(cycle_id, receipt_timestamp, executed, target_lp, target_redeem, target_strategy, strategy_moved, lp_moved, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := DB.Exec(query,
		cycleID, r.Timestamp, r.Executed,
		r.TargetLP.String(), r.TargetRedeem.String(), r.TargetStrategy.String(),
		r.StrategyMoved.String(), r.LPMoved.String(), r.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to save rebalance receipt: %w", err)
	}
	return nil
}

// SaveReward persists one strategy reward observation.
func SaveReward(r types.Reward) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO strategy_rewards (reward_timestamp, deposited, rewards)
		VALUES ($1, $2, $3)
	`
	_, err := DB.Exec(query, r.Timestamp, r.Deposited.String(), r.Rewards.String())
	if err != nil {
		return fmt.Errorf("failed to save reward: %w", err)
	}
	return nil
}

// GetRecentArbitrageReceipts retrieves recent arbitrage receipts, newest
// first.
func GetRecentArbitrageReceipts(limit int) ([]ArbitrageRow, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT receipt_id, cycle_id, receipt_timestamp, executed, a_to_b, amount_in, amount_out, refunded, reason
		FROM arbitrage_receipts
		ORDER BY receipt_timestamp DESC
		LIMIT $1
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query arbitrage receipts: %w", err)
	}
	defer rows.Close()

	var out []ArbitrageRow
	for rows.Next() {
		var row ArbitrageRow
		err := rows.Scan(
			&row.ReceiptID, &row.CycleID, &row.Timestamp, &row.Executed, &row.AToB,
			&row.AmountIn, &row.AmountOut, &row.Refunded, &row.Reason,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan arbitrage receipt row")
			continue
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

// GetRecentRebalanceReceipts retrieves recent rebalance receipts, newest
// first.
func GetRecentRebalanceReceipts(limit int) ([]RebalanceRow, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT receipt_id, cycle_id, receipt_timestamp, executed, target_lp, target_redeem, target_strategy, strategy_moved, lp_moved, reason
		FROM rebalance_receipts
		ORDER BY receipt_timestamp DESC
		LIMIT $1
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalance receipts: %w", err)
	}
	defer rows.Close()

	var out []RebalanceRow
	for rows.Next() {
		var row RebalanceRow
		err := rows.Scan(
			&row.ReceiptID, &row.CycleID, &row.Timestamp, &row.Executed,
			&row.TargetLP, &row.TargetRedeem, &row.TargetStrategy,
			&row.StrategyMoved, &row.LPMoved, &row.Reason,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan rebalance receipt row")
			continue
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

// GetRecentRewards retrieves recent strategy reward observations, newest
// first.
func GetRecentRewards(limit int) ([]RewardRow, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT reward_id, reward_timestamp, deposited, rewards
		FROM strategy_rewards
		ORDER BY reward_timestamp DESC
		LIMIT $1
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards: %w", err)
	}
	defer rows.Close()

	var out []RewardRow
	for rows.Next() {
		var row RewardRow
		if err := rows.Scan(&row.RewardID, &row.Timestamp, &row.Deposited, &row.Rewards); err != nil {
			log.Error().Err(err).Msg("Failed to scan reward row")
			continue
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}
