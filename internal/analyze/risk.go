// Package analyze correlates failure reports with the knowledge base and
// derives risk and resolution estimates.
package analyze

import (
	"strings"

	"github.com/genbatech/chie/internal/models"
)

// Severity keyword lists cover the bilingual vocabulary of maintenance
// reports from the field. Matching is substring-based over the lowercased
// report text, which handles Japanese (no word boundaries) and English alike.
var (
	highSeverityKeywords = []string{
		"緊急", "重大", "火災", "発火", "発煙", "爆発", "停止", "破損", "漏電", "危険", "落下",
		"critical", "severe", "fire", "smoke", "explosion", "shutdown", "breakage", "urgent",
	}
	mediumSeverityKeywords = []string{
		"異音", "振動", "漏れ", "劣化", "摩耗", "過熱", "低下", "不安定", "エラー",
		"warning", "leak", "abnormal", "degraded", "overheat", "unstable", "intermittent",
	}
)

// DeriveRisk classifies a failure report into a three-bucket risk level from
// its severity field, symptom text, and problem description.
func DeriveRisk(report *models.FailureReport) models.RiskLevel {
	text := strings.ToLower(strings.Join([]string{
		report.Diagnostics.Severity,
		report.SymptomText,
		report.Diagnostics.PrimaryProblem,
		report.Diagnostics.ProblemDescription,
	}, " "))

	for _, kw := range highSeverityKeywords {
		if strings.Contains(text, kw) {
			return models.RiskHigh
		}
	}
	for _, kw := range mediumSeverityKeywords {
		if strings.Contains(text, kw) {
			return models.RiskMedium
		}
	}
	// Many affected components without an explicit severity signal still
	// deserve a closer look.
	if len(report.Diagnostics.Components) >= 3 {
		return models.RiskMedium
	}
	return models.RiskLow
}

// EstimateResolutionTime maps risk and component count to a coarse duration
// bucket. More components mean more disassembly and inspection time.
func EstimateResolutionTime(risk models.RiskLevel, componentCount int) string {
	switch risk {
	case models.RiskHigh:
		if componentCount >= 3 {
			return "2-3日"
		}
		return "1-2日"
	case models.RiskMedium:
		if componentCount >= 3 {
			return "1日"
		}
		return "4-8時間"
	default:
		return "1-3時間"
	}
}

// SuggestActions derives maintenance actions from the risk bucket and the
// most relevant knowledge documents.
func SuggestActions(risk models.RiskLevel, components []string, topTitles []string) []string {
	var actions []string
	switch risk {
	case models.RiskHigh:
		actions = append(actions, "設備を直ちに停止し、安全を確保してください")
		actions = append(actions, "保全責任者へ即時報告してください")
	case models.RiskMedium:
		actions = append(actions, "次回の計画停止時に点検を実施してください")
		actions = append(actions, "運転データの監視頻度を上げてください")
	default:
		actions = append(actions, "定期点検時に状態を確認してください")
	}
	if len(components) > 0 {
		actions = append(actions, "対象部位を確認: "+strings.Join(components, "、"))
	}
	for i, title := range topTitles {
		if i >= 2 {
			break
		}
		actions = append(actions, "関連資料を参照: "+title)
	}
	return actions
}
