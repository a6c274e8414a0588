package report

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"

	"gocausal/domain/causal"
)

// Header identifies the run a report describes
type Header struct {
	RunID       string
	Fingerprint string
	Treatment   string
	Outcome     string
	Confounders []string
}

// DistributionSummary describes one group of a plot payload
type DistributionSummary struct {
	N      int
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summarize computes summary statistics; an empty group has N == 0 and zero fields
func Summarize(values []float64) DistributionSummary {
	s := DistributionSummary{N: len(values)}
	if len(values) == 0 {
		return s
	}
	data := stats.Float64Data(values)
	s.Mean, _ = data.Mean()
	s.Median, _ = data.Median()
	s.StdDev, _ = data.StandardDeviationSample()
	s.Min, _ = data.Min()
	s.Max, _ = data.Max()
	return s
}

// PSMMarkdown renders a propensity score matching result
func PSMMarkdown(h Header, r *causal.PSMResult) string {
	var b strings.Builder
	writeHeader(&b, "Propensity Score Matching", h)

	b.WriteString("## Estimates\n\n")
	b.WriteString("| Estimand | Value | Pairs |\n|---|---|---|\n")
	fmt.Fprintf(&b, "| ATT | %s | %d |\n", formatEstimate(r.ATT), r.NumMatchedPairs)
	fmt.Fprintf(&b, "| ATC | %s | %d |\n", formatEstimate(r.ATC), r.NumATCPairs)
	fmt.Fprintf(&b, "| ATE | %s | |\n\n", formatEstimate(r.ATE))
	fmt.Fprintf(&b, "Treated rows: %d. Control rows: %d.\n\n", r.NTreated, r.NControl)
	fmt.Fprintf(&b, "> %s\n\n", r.Message)

	if len(r.CovariateBalance) > 0 {
		b.WriteString("## Covariate balance\n\n")
		b.WriteString("| Feature | SMD before | SMD after |\n|---|---|---|\n")
		for _, cb := range r.CovariateBalance {
			fmt.Fprintf(&b, "| `%s` | %s | %s |\n", cb.Feature, formatEstimate(cb.SMDBefore), formatEstimate(cb.SMDAfter))
		}
		b.WriteString("\n")
	}

	writePlot(&b, r.PropensityScorePlotData)
	writePlot(&b, r.MatchedOutcomePlotData)
	return b.String()
}

// DMLMarkdown renders a double machine learning result
func DMLMarkdown(h Header, r *causal.DMLResult) string {
	var b strings.Builder
	writeHeader(&b, "Double Machine Learning", h)

	b.WriteString("## Estimates\n\n")
	b.WriteString("| Estimand | Value | Lasso alpha |\n|---|---|---|\n")
	fmt.Fprintf(&b, "| ATE | %s | %.4g |\n", formatEstimate(r.ATE), r.ATEAlpha)
	fmt.Fprintf(&b, "| ATT | %s | %.4g |\n\n", formatEstimate(r.ATT), r.ATTAlpha)
	fmt.Fprintf(&b, "Cross-fitting folds: %d. Treated rows: %d.\n\n", r.NSplits, r.NTreated)
	fmt.Fprintf(&b, "> %s\n\n", r.Message)

	writePlot(&b, r.OutcomePlot)
	return b.String()
}

// HTML converts a markdown report into a standalone HTML document
func HTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Causal effect report",
	})
	return markdown.ToHTML([]byte(md), p, renderer)
}

func writeHeader(b *strings.Builder, method string, h Header) {
	fmt.Fprintf(b, "# %s\n\n", method)
	if h.RunID != "" {
		fmt.Fprintf(b, "- Run: `%s`\n", h.RunID)
	}
	if h.Fingerprint != "" {
		fmt.Fprintf(b, "- Dataset: `%s`\n", h.Fingerprint)
	}
	fmt.Fprintf(b, "- Treatment: `%s`\n", h.Treatment)
	fmt.Fprintf(b, "- Outcome: `%s`\n", h.Outcome)
	fmt.Fprintf(b, "- Confounders: %s\n\n", strings.Join(quoteAll(h.Confounders), ", "))
}

func writePlot(b *strings.Builder, p *causal.PlotData) {
	if p == nil {
		return
	}
	labels := []string{"Treated", "Control"}
	if len(p.LegendLabels) == 2 {
		labels = p.LegendLabels
	}
	fmt.Fprintf(b, "## %s\n\n", p.Title)
	fmt.Fprintf(b, "| Group | N | Mean | Median | Std dev | Min | Max |\n|---|---|---|---|---|---|---|\n")
	for i, values := range [][]float64{p.TreatedValues, p.ControlValues} {
		s := Summarize(values)
		if s.N == 0 {
			fmt.Fprintf(b, "| %s | 0 | | | | | |\n", labels[i])
			continue
		}
		fmt.Fprintf(b, "| %s | %d | %.4g | %.4g | %.4g | %.4g | %.4g |\n",
			labels[i], s.N, s.Mean, s.Median, s.StdDev, s.Min, s.Max)
	}
	b.WriteString("\n")
}

func formatEstimate(v *float64) string {
	if v == nil {
		return "undefined"
	}
	return fmt.Sprintf("%.4f", *v)
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "`" + n + "`"
	}
	return out
}
