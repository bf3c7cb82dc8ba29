package portal

import (
	"context"
	"time"

	"github.com/mercurial-finance/vault-portal/internal/row"
	"github.com/mercurial-finance/vault-portal/internal/state"
)

// RunLoop drives the portal: it loads the vault rows once the registry is
// ready, then refreshes vault and user state on every tick, pushing fresh
// keeper summaries into the rows and recording dashboard history snapshots.
// It returns when the context is done.
func (p *Portal) RunLoop(ctx context.Context, interval time.Duration) {
	if err := p.registry.Await(ctx); err != nil {
		p.log.Error().Err(err).Msg("Token registry never became ready")
		return
	}

	if err := p.LoadVaults(ctx); err != nil {
		p.log.Error().Err(err).Msg("Initial vault load failed")
	}
	p.refreshCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("Portal loop stopping")
			p.Close()
			return
		case <-ticker.C:
			p.refreshCycle(ctx)
		}
	}
}

// refreshCycle updates every row from the keeper and the chain, then records
// history snapshots when the snapshot store is enabled.
func (p *Portal) refreshCycle(ctx context.Context) {
	rows := p.Rows()

	// A new keeper publish may carry updated APY/rate data for existing rows.
	infos, err := p.keeper.VaultInfos(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("Keeper summary refresh failed, reusing previous summaries")
	} else {
		byToken := make(map[string]int, len(infos))
		for i, info := range infos {
			byToken[info.TokenAddress] = i
		}
		for _, r := range rows {
			if i, ok := byToken[r.Token().Address]; ok {
				r.SetVaultInfo(infos[i])
			}
		}
	}

	for _, r := range rows {
		r.RefreshVaultState(ctx)
		r.RefreshUserBalances(ctx)
	}

	if state.Enabled() {
		p.recordSnapshots(rows)
	}

	p.log.Debug().Int("rows", len(rows)).Msg("Refresh cycle completed")
}

// recordSnapshots persists one history point per row.
func (p *Portal) recordSnapshots(rows []*row.Controller) {
	for _, r := range rows {
		snap := r.Snapshot()
		_, err := state.SaveSnapshot(state.Snapshot{
			TokenAddress: snap.Token.Address,
			TokenSymbol:  snap.Token.Symbol,
			TVL:          snap.Display.TVL,
			VirtualPrice: snap.Display.VirtualPrice,
			ClosestAPY:   snap.Info.ClosestAPY,
		})
		if err != nil {
			p.log.Warn().Err(err).Str("token", snap.Token.Symbol).Msg("Failed to persist vault snapshot")
		}
	}
}
