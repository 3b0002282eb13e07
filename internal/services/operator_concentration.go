package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/MinterGMT/restaking-research-visuals/internal/charts"
	"github.com/MinterGMT/restaking-research-visuals/internal/clients/duneclient"
	"github.com/MinterGMT/restaking-research-visuals/internal/concentration"
	"github.com/MinterGMT/restaking-research-visuals/internal/db/model"
	"github.com/MinterGMT/restaking-research-visuals/internal/observability/metrics"
	"github.com/MinterGMT/restaking-research-visuals/internal/report"
)

const (
	ModuleOperatorConcentration = "operator_concentration"

	colOperatorName = "Operator Name"
	colProtocol     = "Protocol"
	colDelegatedUSD = "USD value Delegated"

	// overallMarketGroup is the macro view aggregating every protocol.
	overallMarketGroup = "Overall Market"
	// otherProtocolGroup is the catch-all bucket of the source query; it is
	// included in the macro view but gets no standalone micro analysis.
	otherProtocolGroup = "Other"

	operatorOutputDir = "module1_LRT_concentration"
	operatorCSVName   = "centralization_summary.csv"
)

type operatorStake struct {
	Name  string
	Stake float64
}

// RunOperatorConcentration performs the LRT operator market analysis: one
// macro summary over the whole market, then one micro summary per protocol.
// Each group gets an HHI/Gini record, a top-operator bar chart and a Lorenz
// curve; the combined table lands in a CSV and the summary store.
func (s *Service) RunOperatorConcentration(ctx context.Context) error {
	return metrics.RecordAnalysisDuration(ModuleOperatorConcentration, s.runOperatorConcentration)(ctx)
}

func (s *Service) runOperatorConcentration(ctx context.Context) error {
	rows, err := s.fetchLatest(ctx, s.cfg.Analysis.OperatorQueryID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("operator query %d returned no rows", s.cfg.Analysis.OperatorQueryID)
	}
	log.Ctx(ctx).Info().Int("rows", len(rows)).Msg("fetched operator stake data")

	summaryRows := []report.Row{
		s.analyzeOperatorGroup(ctx, overallMarketGroup, rows),
	}

	for _, protocol := range protocolNames(rows) {
		if protocol == otherProtocolGroup {
			continue
		}
		summaryRows = append(summaryRows, s.analyzeOperatorGroup(ctx, protocol, filterProtocol(rows, protocol)))
	}

	csvPath := s.outputPath(operatorOutputDir, operatorCSVName)
	if err := report.WriteOperatorSummaryCSV(csvPath, summaryRows); err != nil {
		return fmt.Errorf("failed to write operator summary: %w", err)
	}

	report.LogSummaryTable(ctx, "LRT Operator Concentration", summaryRows)
	return nil
}

// analyzeOperatorGroup computes and persists the summary of one group and
// renders its charts. Chart failures are logged and counted, not fatal: the
// numbers are the primary artifact.
func (s *Service) analyzeOperatorGroup(ctx context.Context, group string, rows []duneclient.ResultRow) report.Row {
	logger := log.Ctx(ctx)

	operators := operatorStakes(rows)
	stakes := make([]float64, len(operators))
	for i, op := range operators {
		stakes[i] = op.Stake
	}

	summary := concentration.Summarize(stakes)
	logger.Info().
		Str("group", group).
		Int("operators", summary.Entities).
		Float64("hhi", summary.HHI).
		Msg("analyzed operator group")

	doc := model.FromSummary(ModuleOperatorConcentration, group, summary)
	if err := s.db.UpsertConcentrationSummary(ctx, doc); err != nil {
		logger.Warn().Err(err).Str("group", group).Msg("failed to persist concentration summary")
	}

	s.renderOperatorCharts(ctx, group, operators, stakes)
	return report.Row{Group: group, Summary: summary}
}

func (s *Service) renderOperatorCharts(ctx context.Context, group string, operators []operatorStake, stakes []float64) {
	logger := log.Ctx(ctx)
	slug := groupSlug(group)

	top := operators
	if len(top) > s.cfg.Analysis.TopOperators {
		top = top[:s.cfg.Analysis.TopOperators]
	}
	// Largest operator on top of the horizontal chart.
	names := make([]string, len(top))
	values := make([]float64, len(top))
	for i, op := range top {
		names[len(top)-1-i] = op.Name
		values[len(top)-1-i] = op.Stake
	}

	barPath := s.outputPath(operatorOutputDir, fmt.Sprintf("top_operators_%s.png", slug))
	barTitle := fmt.Sprintf("Top %d Operators: %s", len(top), group)
	if err := charts.OperatorBarPNG(barPath, barTitle, names, values); err != nil {
		metrics.RecordChartRenderError("operator_bar")
		logger.Warn().Err(err).Str("group", group).Msg("failed to render operator bar chart")
	}

	points := concentration.Lorenz(stakes)
	if len(points) == 0 {
		return
	}
	lorenzPath := s.outputPath(operatorOutputDir, fmt.Sprintf("lorenz_curve_%s.png", slug))
	if err := charts.LorenzPNG(lorenzPath, group, points); err != nil {
		metrics.RecordChartRenderError("lorenz")
		logger.Warn().Err(err).Str("group", group).Msg("failed to render Lorenz curve")
	}
}

// operatorStakes aggregates stake per operator name and returns the result
// sorted by stake descending.
func operatorStakes(rows []duneclient.ResultRow) []operatorStake {
	totals := make(map[string]float64)
	for _, row := range rows {
		stake, ok := row.Float(colDelegatedUSD)
		if !ok {
			continue
		}
		totals[row.String(colOperatorName)] += stake
	}

	operators := make([]operatorStake, 0, len(totals))
	for name, stake := range totals {
		operators = append(operators, operatorStake{Name: name, Stake: stake})
	}
	sort.Slice(operators, func(i, j int) bool {
		if operators[i].Stake != operators[j].Stake {
			return operators[i].Stake > operators[j].Stake
		}
		return operators[i].Name < operators[j].Name
	})

	return operators
}

// protocolNames returns the distinct protocol labels in first-seen order, so
// the report follows the ordering of the source query.
func protocolNames(rows []duneclient.ResultRow) []string {
	seen := make(map[string]bool)
	var names []string
	for _, row := range rows {
		name := row.String(colProtocol)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// groupSlug turns a display name into a filesystem-safe filename fragment.
func groupSlug(group string) string {
	return strings.ToLower(strings.ReplaceAll(group, " ", "_"))
}

func filterProtocol(rows []duneclient.ResultRow, protocol string) []duneclient.ResultRow {
	var out []duneclient.ResultRow
	for _, row := range rows {
		if row.String(colProtocol) == protocol {
			out = append(out, row)
		}
	}
	return out
}
