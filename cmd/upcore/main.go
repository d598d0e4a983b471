package main

import (
	"context"
	"os"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/unifiprotocol/upcore/internal/access"
	"github.com/unifiprotocol/upcore/internal/config"
	"github.com/unifiprotocol/upcore/internal/controller"
	"github.com/unifiprotocol/upcore/internal/darbi"
	"github.com/unifiprotocol/upcore/internal/logger"
	"github.com/unifiprotocol/upcore/internal/market"
	"github.com/unifiprotocol/upcore/internal/native"
	"github.com/unifiprotocol/upcore/internal/premium"
	"github.com/unifiprotocol/upcore/internal/rebalancer"
	"github.com/unifiprotocol/upcore/internal/redeemer"
	"github.com/unifiprotocol/upcore/internal/service"
	"github.com/unifiprotocol/upcore/internal/state"
	"github.com/unifiprotocol/upcore/internal/token"
	"github.com/unifiprotocol/upcore/internal/types"
	"github.com/unifiprotocol/upcore/internal/web"
)

// Well-known principals of the deployment.
const (
	adminAddr      = types.Address("upcore1admin")
	operatorAddr   = types.Address("upcore1operator")
	tokenAddr      = types.Address("upcore1token")
	controllerAddr = types.Address("upcore1controller")
	premiumAddr    = types.Address("upcore1premium")
	redeemerAddr   = types.Address("upcore1redeemer")
	darbiMintAddr  = types.Address("upcore1darbimint")
	darbiAddr      = types.Address("upcore1darbi")
	rebalancerAddr = types.Address("upcore1rebalancer")
	poolAddr       = types.Address("upcore1pool")
	strategyAddr   = types.Address("upcore1strategy")
)

// main wires the economic core and runs the maintenance loop.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel, config.LogJSON)
	log.Info().Msg("UP core starting...")

	persist := config.DatabaseURL != ""
	if persist {
		if err := state.InitDB(config.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
	} else {
		log.Warn().Msg("UPCORE_DATABASE_URL not set, receipts will not be persisted")
	}

	// Safety switch: only the simulated market backend exists today, and
	// running it must be an explicit choice.
	if mode := os.Getenv("UPCORE_MODE"); mode != "sim" {
		log.Fatal().Msg("UPCORE_MODE is not set to 'sim'. Halting to prevent accidental execution. Set UPCORE_MODE=sim to run.")
	}

	// --- 2. Wire the economic core ---
	core, err := buildCore()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire the economic core")
	}

	log.Info().
		Str("virtualPrice", core.ctrl.VirtualPrice().String()).
		Str("backing", core.ctrl.NativeBalance().String()).
		Str("supply", core.up.TotalSupply().String()).
		Msg("Economic core ready")

	// --- 3. Start the web server ---
	webServer := web.NewWebServer(config.ListenAddr, web.Deps{
		Token:      core.up,
		Controller: core.ctrl,
		Premium:    core.prem,
		Redeemer:   core.red,
		Engine:     core.engine,
		Rebalancer: core.reb,
	})
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Run the maintenance loop ---
	interval := time.Duration(config.CycleIntervalSeconds) * time.Second
	svc := service.New(core.engine, core.reb, operatorAddr, persist)
	svc.RunLoop(context.Background(), interval)
}

type coreComponents struct {
	ledger *native.Ledger
	up     *token.Token
	ctrl   *controller.Controller
	prem   *premium.Minter
	red    *redeemer.Redeemer
	engine *darbi.Engine
	reb    *rebalancer.Rebalancer
}

// buildCore constructs every component, grants the operational roles and
// seeds the genesis state from configuration.
func buildCore() (*coreComponents, error) {
	events := types.NewRecorder()
	ledger := native.NewLedger()

	up := token.New(tokenAddr, adminAddr, ledger, events)
	ctrl := controller.New(controllerAddr, adminAddr, up, ledger, events)
	if err := up.SetController(adminAddr, controllerAddr); err != nil {
		return nil, err
	}
	if err := ctrl.SetMintRate(adminAddr, config.MintRate); err != nil {
		return nil, err
	}

	prem, err := premium.New(premiumAddr, adminAddr, up, ctrl, ledger, config.MintRate, events)
	if err != nil {
		return nil, err
	}

	red, err := redeemer.New(redeemerAddr, adminAddr, up, ctrl, ledger, events)
	if err != nil {
		return nil, err
	}

	pool := market.NewSimPool(poolAddr, ledger, up)
	strategy := market.NewVanillaStrategy(strategyAddr, ledger)
	minter := darbi.NewMinter(darbiMintAddr, adminAddr, up, ctrl, ledger, events)

	engine, err := darbi.NewEngine(darbi.EngineConfig{
		Address:            darbiAddr,
		Admin:              adminAddr,
		Pool:               pool,
		Router:             pool,
		Controller:         ctrl,
		Minter:             minter,
		Token:              up,
		Ledger:             ledger,
		Events:             events,
		ArbitrageThreshold: config.ArbitrageThreshold,
		GasRefund:          config.GasRefund,
		DarbiFunds:         config.DarbiFunds,
	})
	if err != nil {
		return nil, err
	}

	reb, err := rebalancer.New(rebalancer.Config{
		Address:          rebalancerAddr,
		Admin:            adminAddr,
		Pool:             pool,
		Router:           pool,
		Controller:       ctrl,
		Token:            up,
		Ledger:           ledger,
		Strategy:         strategy,
		Events:           events,
		AllocationLP:     config.AllocationLP,
		AllocationRedeem: config.AllocationRedeem,
		SlippageBps:      config.SlippageBps,
	})
	if err != nil {
		return nil, err
	}

	// Mint capability: the controller and both minters create UP.
	for _, minterAddr := range []types.Address{controllerAddr, premiumAddr, darbiMintAddr} {
		if err := up.Roles().GrantRole(adminAddr, access.RoleMint, minterAddr); err != nil {
			return nil, err
		}
	}
	// The engine mints through the darbi minter and redeems through the
	// controller; the operator triggers it.
	if err := minter.Roles().GrantRole(adminAddr, access.RoleDarbi, darbiAddr); err != nil {
		return nil, err
	}
	if err := ctrl.Roles().GrantRole(adminAddr, access.RoleRedeemer, darbiAddr); err != nil {
		return nil, err
	}
	// The public redeemer is the only other principal allowed to redeem
	// against the backing.
	if err := ctrl.Roles().GrantRole(adminAddr, access.RoleRedeemer, redeemerAddr); err != nil {
		return nil, err
	}
	if err := engine.Roles().GrantRole(adminAddr, access.RoleMonitor, operatorAddr); err != nil {
		return nil, err
	}
	// The rebalancer borrows from and repays the controller; the operator
	// triggers it.
	if err := ctrl.Roles().GrantRole(adminAddr, access.RoleRebalancer, rebalancerAddr); err != nil {
		return nil, err
	}
	if err := reb.Roles().GrantRole(adminAddr, access.RoleRebalancer, operatorAddr); err != nil {
		return nil, err
	}

	if err := seedGenesis(ledger, up, pool); err != nil {
		return nil, err
	}

	return &coreComponents{
		ledger: ledger,
		up:     up,
		ctrl:   ctrl,
		prem:   prem,
		red:    red,
		engine: engine,
		reb:    reb,
	}, nil
}

// seedGenesis funds the controller's backing, mints the initial supply and
// opens the simulated pool with both legs.
func seedGenesis(ledger *native.Ledger, up *token.Token, pool *market.SimPool) error {
	if err := ledger.Credit(controllerAddr, config.InitialBacking); err != nil {
		return err
	}

	// A one-off mint grant covers the genesis supply; the capability is
	// revoked immediately after.
	if err := up.Roles().GrantRole(adminAddr, access.RoleMint, adminAddr); err != nil {
		return err
	}
	if err := up.Mint(adminAddr, adminAddr, config.InitialSupply, sdkmath.ZeroInt()); err != nil {
		return err
	}
	if err := up.Roles().RevokeRole(adminAddr, access.RoleMint, adminAddr); err != nil {
		return err
	}

	if err := ledger.Credit(adminAddr, config.PoolNative); err != nil {
		return err
	}
	if _, err := pool.AddLiquidity(adminAddr, config.PoolNative, config.PoolUP); err != nil {
		return err
	}

	// The engine's operating float.
	if config.DarbiFunds.IsPositive() {
		if err := ledger.Credit(darbiAddr, config.DarbiFunds); err != nil {
			return err
		}
	}
	return nil
}
