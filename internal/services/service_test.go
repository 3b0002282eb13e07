package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinterGMT/restaking-research-visuals/internal/clients/duneclient"
	"github.com/MinterGMT/restaking-research-visuals/internal/concentration"
	"github.com/MinterGMT/restaking-research-visuals/internal/config"
	"github.com/MinterGMT/restaking-research-visuals/internal/db"
	"github.com/MinterGMT/restaking-research-visuals/internal/db/model"
	"github.com/MinterGMT/restaking-research-visuals/internal/report"
)

type fakeDune struct {
	latest    map[int64][]duneclient.ResultRow
	latestErr map[int64]error

	run    map[string][]duneclient.ResultRow
	runErr map[string]error

	runCalls []string
}

func runKey(queryID int64, params map[string]string) string {
	return fmt.Sprintf("%d:%s", queryID, model.HashParams(params))
}

func (f *fakeDune) GetLatestResult(_ context.Context, queryID int64) ([]duneclient.ResultRow, error) {
	if err := f.latestErr[queryID]; err != nil {
		return nil, err
	}
	return f.latest[queryID], nil
}

func (f *fakeDune) RunQuery(_ context.Context, queryID int64, params map[string]string) ([]duneclient.ResultRow, error) {
	key := runKey(queryID, params)
	f.runCalls = append(f.runCalls, key)
	if err := f.runErr[key]; err != nil {
		return nil, err
	}
	return f.run[key], nil
}

type fakeDb struct {
	snapshots map[string]*model.QuerySnapshotDocument
	summaries map[string]*model.ConcentrationSummaryDocument

	saveSnapshotErr error
}

func newFakeDb() *fakeDb {
	return &fakeDb{
		snapshots: make(map[string]*model.QuerySnapshotDocument),
		summaries: make(map[string]*model.ConcentrationSummaryDocument),
	}
}

func (f *fakeDb) Ping(context.Context) error { return nil }

func (f *fakeDb) SaveQuerySnapshot(_ context.Context, snapshot *model.QuerySnapshotDocument) error {
	if f.saveSnapshotErr != nil {
		return f.saveSnapshotErr
	}
	f.snapshots[snapshot.ID] = snapshot
	return nil
}

func (f *fakeDb) GetQuerySnapshot(_ context.Context, queryID int64, paramsHash string) (*model.QuerySnapshotDocument, error) {
	snapshot, ok := f.snapshots[model.SnapshotID(queryID, paramsHash)]
	if !ok {
		return nil, &db.NotFoundError{Key: model.SnapshotID(queryID, paramsHash), Message: "not cached"}
	}
	return snapshot, nil
}

func (f *fakeDb) UpsertConcentrationSummary(_ context.Context, doc *model.ConcentrationSummaryDocument) error {
	f.summaries[doc.ID] = doc
	return nil
}

func (f *fakeDb) GetConcentrationSummary(_ context.Context, module, group string) (*model.ConcentrationSummaryDocument, error) {
	doc, ok := f.summaries[model.SummaryID(module, group)]
	if !ok {
		return nil, &db.NotFoundError{Key: model.SummaryID(module, group), Message: "no summary"}
	}
	return doc, nil
}

func (f *fakeDb) ListConcentrationSummaries(_ context.Context, module string) ([]*model.ConcentrationSummaryDocument, error) {
	var docs []*model.ConcentrationSummaryDocument
	for _, doc := range f.summaries {
		if doc.Module == module {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Dune: config.DuneConfig{
			Cooldown: time.Millisecond,
		},
		Analysis: config.AnalysisConfig{
			OutputDir:                 t.TempDir(),
			TopOperators:              15,
			OperatorQueryID:           100,
			AVSQueryID:                200,
			PriceVolumeQueryID:        300,
			WethDrainQueryID:          301,
			MorphoLiquidationsQueryID: 302,
			BlastFlowsQueryID:         303,
			DexVolumeQueryID:          304,
			Markets: map[string]string{
				"EigenDA": "0xaaa",
				"Omni":    "0xbbb",
			},
		},
	}
}

func operatorRows() []duneclient.ResultRow {
	return []duneclient.ResultRow{
		{"Operator Name": "P2P", "Protocol": "ether.fi", "USD value Delegated": 500.0},
		{"Operator Name": "Figment", "Protocol": "ether.fi", "USD value Delegated": 300.0},
		{"Operator Name": "Coinbase", "Protocol": "Renzo", "USD value Delegated": 100.0},
		{"Operator Name": "Kiln", "Protocol": "Other", "USD value Delegated": 100.0},
	}
}

func TestRunOperatorConcentration(t *testing.T) {
	cfg := testConfig(t)
	dune := &fakeDune{latest: map[int64][]duneclient.ResultRow{100: operatorRows()}}
	store := newFakeDb()
	svc := NewService(cfg, store, dune)

	require.NoError(t, svc.RunOperatorConcentration(context.Background()))

	// Macro summary over all four operators, [500 300 100 100].
	overall, err := store.GetConcentrationSummary(context.Background(), ModuleOperatorConcentration, "Overall Market")
	require.NoError(t, err)
	assert.Equal(t, 4, overall.Entities)
	assert.Equal(t, 1000.0, overall.TotalStake)
	assert.InDelta(t, 3600.0, overall.HHI, 1e-9)
	require.NotNil(t, overall.Gini)
	assert.InDelta(t, 0.35, *overall.Gini, 1e-9)

	// Micro summaries per protocol, the catch-all bucket excluded.
	_, err = store.GetConcentrationSummary(context.Background(), ModuleOperatorConcentration, "ether.fi")
	require.NoError(t, err)
	_, err = store.GetConcentrationSummary(context.Background(), ModuleOperatorConcentration, "Renzo")
	require.NoError(t, err)
	_, err = store.GetConcentrationSummary(context.Background(), ModuleOperatorConcentration, "Other")
	require.Error(t, err)

	csvPath := filepath.Join(cfg.Analysis.OutputDir, "module1_LRT_concentration", "centralization_summary.csv")
	rows, err := report.ReadAVSSummaryCSV(csvPath)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Overall Market", rows[0].Group)

	for _, name := range []string{
		"top_operators_overall_market.png",
		"lorenz_curve_overall_market.png",
		"top_operators_ether.fi.png",
	} {
		_, err := os.Stat(filepath.Join(cfg.Analysis.OutputDir, "module1_LRT_concentration", name))
		assert.NoError(t, err, name)
	}

	// The fetched rows were cached as a snapshot.
	snapshot, err := store.GetQuerySnapshot(context.Background(), 100, model.HashParams(nil))
	require.NoError(t, err)
	assert.Len(t, snapshot.Rows, 4)
}

func TestRunOperatorConcentration_SnapshotFailureIsNotFatal(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
	}{
		{"storage outage", errors.New("mongo down")},
		{"concurrent run won the upsert race", &db.DuplicateKeyError{Key: "100:latest", Message: "E11000"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			dune := &fakeDune{latest: map[int64][]duneclient.ResultRow{100: operatorRows()}}
			store := newFakeDb()
			store.saveSnapshotErr = tc.err

			require.NoError(t, NewService(cfg, store, dune).RunOperatorConcentration(context.Background()))
		})
	}
}

func TestRunOperatorConcentration_ServesCachedSnapshotWhenFetchFails(t *testing.T) {
	cfg := testConfig(t)
	store := newFakeDb()

	// A previous run cached the operator rows.
	raw := make([]map[string]any, 0, len(operatorRows()))
	for _, row := range operatorRows() {
		raw = append(raw, row)
	}
	hash := model.HashParams(nil)
	store.snapshots[model.SnapshotID(100, hash)] = &model.QuerySnapshotDocument{
		ID:         model.SnapshotID(100, hash),
		QueryID:    100,
		ParamsHash: hash,
		Rows:       raw,
	}

	dune := &fakeDune{latestErr: map[int64]error{100: errors.New("dune is down")}}
	require.NoError(t, NewService(cfg, store, dune).RunOperatorConcentration(context.Background()))

	overall, err := store.GetConcentrationSummary(context.Background(), ModuleOperatorConcentration, "Overall Market")
	require.NoError(t, err)
	assert.InDelta(t, 3600.0, overall.HHI, 1e-9)
}

func TestRunOperatorConcentration_NoRows(t *testing.T) {
	cfg := testConfig(t)
	dune := &fakeDune{latest: map[int64][]duneclient.ResultRow{}}

	err := NewService(cfg, newFakeDb(), dune).RunOperatorConcentration(context.Background())
	require.Error(t, err)
}

func TestRunAVSConcentration(t *testing.T) {
	cfg := testConfig(t)
	dune := &fakeDune{
		run: map[string][]duneclient.ResultRow{
			runKey(200, map[string]string{"avs_address": "0xaaa"}): {
				{"Operator Name": "P2P", "USD value Delegated": 900.0},
				{"Operator Name": "Kiln", "USD value Delegated": 100.0},
			},
			runKey(200, map[string]string{"avs_address": "0xbbb"}): {
				{"Operator Name": "Figment", "USD value Delegated": 100.0},
			},
		},
	}
	store := newFakeDb()

	require.NoError(t, NewService(cfg, store, dune).RunAVSConcentration(context.Background()))
	assert.Len(t, dune.runCalls, 2)

	eigenDA, err := store.GetConcentrationSummary(context.Background(), ModuleAVSConcentration, "EigenDA")
	require.NoError(t, err)
	assert.InDelta(t, 8200.0, eigenDA.HHI, 1e-9)

	csvPath := filepath.Join(cfg.Analysis.OutputDir, "module1.5_AVS_concentration", "avs_concentration_summary.csv")
	rows, err := report.ReadAVSSummaryCSV(csvPath)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Markets are processed alphabetically.
	assert.Equal(t, "EigenDA", rows[0].Group)
	assert.Equal(t, "Omni", rows[1].Group)
}

func TestRunAVSConcentration_SkipsBrokenMarket(t *testing.T) {
	cfg := testConfig(t)
	dune := &fakeDune{
		run: map[string][]duneclient.ResultRow{
			runKey(200, map[string]string{"avs_address": "0xbbb"}): {
				{"Operator Name": "Figment", "USD value Delegated": 100.0},
			},
		},
		runErr: map[string]error{
			runKey(200, map[string]string{"avs_address": "0xaaa"}): errors.New("query timeout"),
		},
	}
	store := newFakeDb()

	require.NoError(t, NewService(cfg, store, dune).RunAVSConcentration(context.Background()))

	_, err := store.GetConcentrationSummary(context.Background(), ModuleAVSConcentration, "EigenDA")
	require.Error(t, err)
	_, err = store.GetConcentrationSummary(context.Background(), ModuleAVSConcentration, "Omni")
	require.NoError(t, err)
}

func TestRunAVSConcentration_ServesCachedSnapshotWhenRunFails(t *testing.T) {
	cfg := testConfig(t)
	store := newFakeDb()

	// Only EigenDA has a cached snapshot; Omni fails outright and is
	// skipped, EigenDA is analyzed from the cache.
	params := map[string]string{"avs_address": "0xaaa"}
	hash := model.HashParams(params)
	store.snapshots[model.SnapshotID(200, hash)] = &model.QuerySnapshotDocument{
		ID:         model.SnapshotID(200, hash),
		QueryID:    200,
		ParamsHash: hash,
		Rows: []map[string]any{
			{"Operator Name": "P2P", "USD value Delegated": 900.0},
			{"Operator Name": "Kiln", "USD value Delegated": 100.0},
		},
	}

	dune := &fakeDune{
		runErr: map[string]error{
			runKey(200, map[string]string{"avs_address": "0xaaa"}): errors.New("credits exhausted"),
			runKey(200, map[string]string{"avs_address": "0xbbb"}): errors.New("credits exhausted"),
		},
	}

	require.NoError(t, NewService(cfg, store, dune).RunAVSConcentration(context.Background()))

	eigenDA, err := store.GetConcentrationSummary(context.Background(), ModuleAVSConcentration, "EigenDA")
	require.NoError(t, err)
	assert.InDelta(t, 8200.0, eigenDA.HHI, 1e-9)

	_, err = store.GetConcentrationSummary(context.Background(), ModuleAVSConcentration, "Omni")
	require.Error(t, err)
}

func TestRunAVSConcentration_AllMarketsFail(t *testing.T) {
	cfg := testConfig(t)
	dune := &fakeDune{
		runErr: map[string]error{
			runKey(200, map[string]string{"avs_address": "0xaaa"}): errors.New("boom"),
			runKey(200, map[string]string{"avs_address": "0xbbb"}): errors.New("boom"),
		},
	}

	err := NewService(cfg, newFakeDb(), dune).RunAVSConcentration(context.Background())
	require.Error(t, err)
}

func TestRenderAVSChart_FromDatabase(t *testing.T) {
	cfg := testConfig(t)
	store := newFakeDb()
	ctx := context.Background()

	require.NoError(t, store.UpsertConcentrationSummary(ctx,
		model.FromSummary(ModuleAVSConcentration, "EigenDA", concentration.Summary{Entities: 230, TotalStake: 1.5e9, HHI: 503.92, Gini: 0.87})))
	require.NoError(t, store.UpsertConcentrationSummary(ctx,
		model.FromSummary(ModuleAVSConcentration, "Omni", concentration.Summary{Entities: 18, TotalStake: 2.5e7, HHI: 2400, Gini: 0.35})))
	require.NoError(t, store.UpsertConcentrationSummary(ctx,
		model.FromSummary(ModuleOperatorConcentration, "Overall Market", concentration.Summary{Entities: 40, TotalStake: 9e9, HHI: 812, Gini: 0.8})))

	svc := NewService(cfg, store, &fakeDune{})
	require.NoError(t, svc.RenderAVSChart(ctx))

	raw, err := os.ReadFile(filepath.Join(cfg.Analysis.OutputDir, "module1.5_AVS_concentration", "avs_hhi_comparison.html"))
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "EigenDA")
	assert.Contains(t, content, "Overall LRT Market (Baseline)")
}

func TestRenderAVSChart_CSVFallback(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analysis.OverallMarketHHI = 812

	csvPath := filepath.Join(cfg.Analysis.OutputDir, "module1.5_AVS_concentration", "avs_concentration_summary.csv")
	require.NoError(t, report.WriteAVSSummaryCSV(csvPath, []report.Row{
		{Group: "EigenDA", Summary: concentration.Summary{Entities: 230, TotalStake: 1.5e9, HHI: 503.92, Gini: 0.87}},
		{Group: "Empty Market", Summary: concentration.Summary{Gini: math.NaN()}},
	}))

	svc := NewService(cfg, newFakeDb(), &fakeDune{})
	require.NoError(t, svc.RenderAVSChart(context.Background()))

	raw, err := os.ReadFile(filepath.Join(cfg.Analysis.OutputDir, "module1.5_AVS_concentration", "avs_hhi_comparison.html"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Overall LRT Market (Baseline)")
}

func TestRenderAVSChart_NoSummariesAnywhere(t *testing.T) {
	cfg := testConfig(t)
	err := NewService(cfg, newFakeDb(), &fakeDune{}).RenderAVSChart(context.Background())
	require.Error(t, err)
}

func TestRunDepegAnalysis(t *testing.T) {
	cfg := testConfig(t)
	dune := &fakeDune{latest: map[int64][]duneclient.ResultRow{
		300: {
			{"minute": "2024-04-23T23:58:00Z", "price_ratio_weth": 1.0, "volume_usd": 1000.0},
			{"minute": "2024-04-23T23:59:00Z", "price_ratio_weth": 0.97, "volume_usd": 5000.0},
			{"minute": "2024-04-24T00:01:00Z", "price_ratio_weth": 0.91, "volume_usd": 250000.0},
		},
		301: {
			{"minute": "2024-04-23T23:59:00Z", "cumulative_weth_drained": 1200.0},
			{"minute": "2024-04-24T00:01:00Z", "cumulative_weth_drained": 4100.0},
		},
		302: {
			{"day": "2024-04-24T00:00:00Z", "total_usd_liquidated": 6.0e7},
		},
		303: {
			{"day": "2024-04-23T00:00:00Z", "gross_deposits": 100.0, "gross_withdrawals": -20.0, "net_flow_ezeth": 80.0},
			{"day": "2024-04-24T00:00:00Z", "gross_deposits": 10.0, "gross_withdrawals": -400.0, "net_flow_ezeth": -390.0},
		},
	}}

	require.NoError(t, NewService(cfg, newFakeDb(), dune).RunDepegAnalysis(context.Background()))

	mainnet, err := os.ReadFile(filepath.Join(cfg.Analysis.OutputDir, "module2_depeg_analysis", "ezETH_depeg_mainnet_analysis.html"))
	require.NoError(t, err)
	assert.Contains(t, string(mainnet), "ezETH/WETH Price Ratio")

	blast, err := os.ReadFile(filepath.Join(cfg.Analysis.OutputDir, "module2_depeg_analysis", "ezETH_depeg_blast_contagion.html"))
	require.NoError(t, err)
	assert.Contains(t, string(blast), "Daily Withdrawals")
}

func TestRunDepegAnalysis_FetchFailureAborts(t *testing.T) {
	cfg := testConfig(t)
	dune := &fakeDune{
		latest:    map[int64][]duneclient.ResultRow{},
		latestErr: map[int64]error{301: errors.New("dune is down")},
	}

	err := NewService(cfg, newFakeDb(), dune).RunDepegAnalysis(context.Background())
	require.Error(t, err)
}

func TestRunDexVolume(t *testing.T) {
	cfg := testConfig(t)
	dune := &fakeDune{latest: map[int64][]duneclient.ResultRow{
		304: {
			{"day": "2024-04-23T00:00:00Z", "project": "balancer", "total_volume_usd": 100.0},
			{"day": "2024-04-23T00:00:00Z", "project": "uniswap", "total_volume_usd": 400.0},
			{"day": "2024-04-24T00:00:00Z", "project": "curve", "total_volume_usd": 50.0},
		},
	}}

	require.NoError(t, NewService(cfg, newFakeDb(), dune).RunDexVolume(context.Background()))

	_, err := os.Stat(filepath.Join(cfg.Analysis.OutputDir, "module2_depeg_analysis", "figure_market_wide_dex_volume.png"))
	require.NoError(t, err)
}

func TestRunMorphoLiquidations(t *testing.T) {
	cfg := testConfig(t)
	dune := &fakeDune{latest: map[int64][]duneclient.ResultRow{
		302: {
			{"day": "2024-04-24T00:00:00Z", "total_usd_liquidated": 6.0e7},
		},
	}}

	require.NoError(t, NewService(cfg, newFakeDb(), dune).RunMorphoLiquidations(context.Background()))

	_, err := os.Stat(filepath.Join(cfg.Analysis.OutputDir, "module2_depeg_analysis", "figure_morpho_liquidations.png"))
	require.NoError(t, err)
}
