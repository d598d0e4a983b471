/*

The service runs the periodic maintenance loop: each cycle checks the pool
against the virtual price, executes an arbitrage trade when the divergence
is worth it, then rebalances the controller's backing across its sinks.
Receipts from both steps are persisted when a database is configured.

*/

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/unifiprotocol/upcore/internal/darbi"
	"github.com/unifiprotocol/upcore/internal/logger"
	"github.com/unifiprotocol/upcore/internal/rebalancer"
	"github.com/unifiprotocol/upcore/internal/state"
	"github.com/unifiprotocol/upcore/internal/types"
)

// Service drives the arbitrage engine and rebalancer on a fixed interval.
type Service struct {
	engine     *darbi.Engine
	rebalancer *rebalancer.Rebalancer
	operator   types.Address
	persist    bool
	logger     zerolog.Logger
}

// New builds the orchestration service. The operator address must hold the
// monitor role on the engine and the rebalancer role on the rebalancer.
// persist enables receipt storage through the state package.
func New(engine *darbi.Engine, reb *rebalancer.Rebalancer, operator types.Address, persist bool) *Service {
	return &Service{
		engine:     engine,
		rebalancer: reb,
		operator:   operator,
		persist:    persist,
		logger:     logger.GetForComponent("service"),
	}
}

// RunLoop runs cycles until the context is cancelled. The first cycle runs
// immediately.
func (s *Service) RunLoop(ctx context.Context, interval time.Duration) {
	s.logger.Info().
		Dur("interval", interval).
		Msg("Starting maintenance loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Maintenance loop stopped")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle executes one arbitrage + rebalance pass. Failures are logged
// and the cycle moves on; the next tick retries from fresh state.
func (s *Service) RunCycle(ctx context.Context) {
	cycleID := uuid.New().String()
	cycleLogger := s.logger.With().Str("cycle_id", cycleID).Logger()

	cycleLogger.Info().Msg("--- Starting cycle ---")

	if s.persist {
		if n, err := state.IncrementCycleNumber(); err != nil {
			cycleLogger.Error().Err(err).Msg("Failed to increment cycle counter")
		} else {
			cycleLogger = cycleLogger.With().Int("cycle_number", n).Logger()
		}
	}

	cycleLogger.Info().Msg("Step 1: Checking pool against virtual price...")
	arb, err := s.engine.Arbitrage(s.operator)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Arbitrage step failed")
	} else {
		cycleLogger.Info().
			Bool("executed", arb.Executed).
			Bool("aToB", arb.AToB).
			Str("amountIn", arb.AmountIn.String()).
			Str("amountOut", arb.AmountOut.String()).
			Str("reason", arb.Reason).
			Msg("Step 1: Arbitrage complete")
	}
	if s.persist && err == nil {
		if saveErr := state.SaveArbitrageReceipt(cycleID, arb); saveErr != nil {
			cycleLogger.Error().Err(saveErr).Msg("Failed to persist arbitrage receipt")
		}
	}

	if ctx.Err() != nil {
		return
	}

	cycleLogger.Info().Msg("Step 2: Rebalancing backing allocations...")
	reb, err := s.rebalancer.Rebalance(s.operator)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Rebalance step failed")
	} else {
		cycleLogger.Info().
			Bool("executed", reb.Executed).
			Str("strategyMoved", reb.StrategyMoved.String()).
			Str("lpMoved", reb.LPMoved.String()).
			Str("reason", reb.Reason).
			Msg("Step 2: Rebalance complete")
	}
	if s.persist && err == nil {
		if saveErr := state.SaveRebalanceReceipt(cycleID, reb); saveErr != nil {
			cycleLogger.Error().Err(saveErr).Msg("Failed to persist rebalance receipt")
		}
		if reb.Executed {
			if rewards := s.rebalancer.Rewards(); len(rewards) > 0 {
				latest := rewards[len(rewards)-1]
				if saveErr := state.SaveReward(latest); saveErr != nil {
					cycleLogger.Error().Err(saveErr).Msg("Failed to persist reward")
				}
			}
		}
	}

	cycleLogger.Info().Msg("--- Cycle complete ---")
}
