package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/tidwall/pretty"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	upStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	downStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	cellStyle   = lipgloss.NewStyle().Width(12).Align(lipgloss.Right)
	dateStyle   = lipgloss.NewStyle().Width(12)
)

// codeArg returns the code argument, prompting for one when it is missing.
func codeArg(args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	var code string
	prompt := &survey.Input{Message: "Stock code (e.g. 2330):"}
	if err := survey.AskOne(prompt, &code, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	return code, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Color(pretty.Pretty(data), nil))
	return err
}

// renderSeriesTable colors closes red on up days and green on down days,
// following the Taiwan convention.
func renderSeriesTable(series *Series) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s (%d days)", series.Code, series.Name, len(series.Data))))
	b.WriteString("\n")

	header := []string{
		dateStyle.Render("date"),
		cellStyle.Render("open"),
		cellStyle.Render("high"),
		cellStyle.Render("low"),
		cellStyle.Render("close"),
		cellStyle.Render("vol(k)"),
	}
	b.WriteString(headerStyle.Render(strings.Join(header, "")))
	b.WriteString("\n")

	for i, bar := range series.Data {
		closeText := fmt.Sprintf("%.2f", bar.Close)
		if i > 0 {
			switch prev := series.Data[i-1].Close; {
			case bar.Close > prev:
				closeText = upStyle.Render(closeText)
			case bar.Close < prev:
				closeText = downStyle.Render(closeText)
			}
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			dateStyle.Render(bar.Date),
			cellStyle.Render(fmt.Sprintf("%.2f", bar.Open)),
			cellStyle.Render(fmt.Sprintf("%.2f", bar.High)),
			cellStyle.Render(fmt.Sprintf("%.2f", bar.Low)),
			cellStyle.Render(closeText),
			cellStyle.Render(fmt.Sprintf("%d", bar.Volume)),
		))
		b.WriteString("\n")
	}
	return b.String()
}

func renderSearchResults(results []StockSearchResult) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			headerStyle.Width(10).Render(r.Code),
			lipgloss.NewStyle().Width(24).Render(r.Name),
			r.Market,
		))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
