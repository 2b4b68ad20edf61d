package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/coprede/sir-dashboard/pkg/client"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// Output formats accepted by --output.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Terminal palette.
const (
	colorCritical = "203" // red
	colorWarning  = "214" // orange
	colorNormal   = "42"  // green
	colorMuted    = "240" // dark gray
	colorHeader   = "255" // white
)

const descriptionWidth = 48

type styles struct {
	header   lipgloss.Style
	critical lipgloss.Style
	warning  lipgloss.Style
	normal   lipgloss.Style
	muted    lipgloss.Style
	bold     lipgloss.Style
}

func newStyles(noColor bool) styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return styles{header: plain, critical: plain, warning: plain, normal: plain, muted: plain, bold: plain}
	}
	return styles{
		header:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorHeader)).Bold(true),
		critical: lipgloss.NewStyle().Foreground(lipgloss.Color(colorCritical)).Bold(true),
		warning:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarning)),
		normal:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorNormal)),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted)),
		bold:     lipgloss.NewStyle().Bold(true),
	}
}

func (s styles) severity(sev string) lipgloss.Style {
	switch sev {
	case "critical":
		return s.critical
	case "warning":
		return s.warning
	case "normal":
		return s.normal
	default:
		return s.muted
	}
}

func (s styles) transition(t client.Transition) lipgloss.Style {
	if t.Critical {
		return s.critical
	}
	return s.normal
}

// table renders rows under headers. rowStyle may be nil.
func (s styles) table(headers []string, rows [][]string, rowStyle func(row int) lipgloss.Style) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			cell := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return cell.Inherit(s.header)
			}
			if rowStyle != nil {
				return cell.Inherit(rowStyle(row))
			}
			return cell
		}).
		String()
}

// Printer writes command results in the selected format.
type Printer struct {
	w      io.Writer
	format string
	styles styles
}

// NewPrinter validates format and returns a Printer writing to w.
func NewPrinter(w io.Writer, format string, noColor bool) (*Printer, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "":
		format = FormatTable
	case FormatTable, FormatJSON, FormatYAML:
	default:
		return nil, errors.New(errors.ErrCodeValidation, "unknown output format").WithDetail(format)
	}
	return &Printer{w: w, format: format, styles: newStyles(noColor)}, nil
}

// Print encodes data as JSON or YAML, or calls render in table mode.
func (p *Printer) Print(data interface{}, render func(s styles) string) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(data)
	case FormatYAML:
		// Round trip through JSON so the keys follow the json tags.
		generic, err := recode[interface{}](data)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "encode yaml")
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(p.w, render(p.styles))
		return err
	}
}

// Text writes a plain line regardless of the format.
func (p *Printer) Text(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func renderBoard(s styles, b *client.Board) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  total %d  shown %d  %s\n",
		s.bold.Render(b.Dataset), b.Total, b.Filtered, s.severity(b.Severity).Render(b.Severity))
	if b.Filterable && len(b.SelectedTypes) > 0 {
		fmt.Fprintf(&sb, "%s\n", s.muted.Render("types: "+strings.Join(b.SelectedTypes, ", ")))
	}
	if len(b.Clusters) == 0 {
		sb.WriteString(s.muted.Render("no incidents"))
		return sb.String()
	}
	rows := make([][]string, 0, len(b.Clusters))
	for _, c := range b.Clusters {
		regions := make([]string, 0, len(c.Regions))
		for _, r := range c.Regions {
			name := fmt.Sprintf("%s %d", orDash(r.Name), r.Count)
			if r.Critical {
				name += "!"
			}
			regions = append(regions, name)
		}
		rows = append(rows, []string{orDash(c.Name), strconv.Itoa(c.Count), c.Severity, strings.Join(regions, ", ")})
	}
	sb.WriteString(s.table([]string{"CLUSTER", "COUNT", "SEVERITY", "REGIONS"}, rows, func(row int) lipgloss.Style {
		return s.severity(b.Clusters[row].Severity)
	}))
	return sb.String()
}

func renderCluster(s styles, v *client.ClusterView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s / %s  %d incidents  %s\n",
		v.Dataset, s.bold.Render(orDash(v.Summary.Name)), v.Summary.Count, s.severity(v.Summary.Severity).Render(v.Summary.Severity))
	if len(v.Summary.Regions) > 0 {
		rows := make([][]string, 0, len(v.Summary.Regions))
		for _, r := range v.Summary.Regions {
			rows = append(rows, []string{orDash(r.Name), strconv.Itoa(r.Count), r.Severity})
		}
		sb.WriteString(s.table([]string{"REGION", "COUNT", "SEVERITY"}, rows, func(row int) lipgloss.Style {
			return s.severity(v.Summary.Regions[row].Severity)
		}))
		sb.WriteString("\n")
	}
	rows := make([][]string, 0, len(v.Records))
	for _, r := range v.Records {
		rows = append(rows, []string{orDash(r.Code), r.Type, orDash(r.Region), orDash(r.Duration), orDash(r.Date), truncate(r.Description, descriptionWidth)})
	}
	sb.WriteString(s.table([]string{"CODE", "TYPE", "REGION", "DURATION", "DATE", "DESCRIPTION"}, rows, nil))
	return sb.String()
}

func renderSnapshot(s styles, info *client.SnapshotInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", s.muted.Render("snapshot  "), info.ID)
	fmt.Fprintf(&sb, "%s %s\n", s.muted.Render("updated   "), orDash(info.UpdatedAt))
	fmt.Fprintf(&sb, "%s %s\n", s.muted.Render("fetched   "), formatTime(info.FetchedAt))
	fmt.Fprintf(&sb, "%s %s\n", s.muted.Render("source    "), orDash(info.Source))
	names := make([]string, 0, len(info.Totals))
	for name := range info.Totals {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		t := info.Totals[name]
		rows = append(rows, []string{name, strconv.Itoa(t.Total), strconv.Itoa(t.Items)})
	}
	sb.WriteString(s.table([]string{"DATASET", "TOTAL", "ITEMS"}, rows, nil))
	return sb.String()
}

func criticalClusters(d client.DatasetSummary) []string {
	var out []string
	for _, c := range d.Clusters {
		if c.Critical {
			out = append(out, c.Name)
		}
	}
	return out
}

func renderHistory(s styles, history []client.SnapshotSummary) string {
	if len(history) == 0 {
		return s.muted.Render("no history recorded")
	}
	rows := make([][]string, 0, len(history))
	for _, h := range history {
		counts := make([]string, 0, len(h.Datasets))
		var critical []string
		for _, d := range h.Datasets {
			counts = append(counts, fmt.Sprintf("%s %d", d.Name, d.Items))
			for _, c := range criticalClusters(d) {
				critical = append(critical, d.Name+"/"+c)
			}
		}
		rows = append(rows, []string{h.SnapshotID, formatTime(h.FetchedAt), strings.Join(counts, "  "), orDash(strings.Join(critical, ", "))})
	}
	return s.table([]string{"SNAPSHOT", "FETCHED", "ITEMS", "CRITICAL"}, rows, func(row int) lipgloss.Style {
		if rows[row][3] != "-" {
			return s.critical
		}
		return lipgloss.NewStyle()
	})
}

func renderTrend(s styles, points []client.TrendPoint) string {
	if len(points) == 0 {
		return s.muted.Render("no history recorded")
	}
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{p.SnapshotID, formatTime(p.FetchedAt), strconv.Itoa(p.Count), strconv.FormatBool(p.Critical)})
	}
	return s.table([]string{"SNAPSHOT", "FETCHED", "COUNT", "CRITICAL"}, rows, func(row int) lipgloss.Style {
		if points[row].Critical {
			return s.critical
		}
		return lipgloss.NewStyle()
	})
}

func transitionState(t client.Transition) string {
	if t.Critical {
		return "critical"
	}
	return "cleared"
}

func renderTransitions(s styles, transitions []client.Transition) string {
	if len(transitions) == 0 {
		return s.muted.Render("no transitions recorded")
	}
	rows := make([][]string, 0, len(transitions))
	for _, t := range transitions {
		rows = append(rows, []string{formatTime(t.At), t.Dataset, t.Cluster, transitionState(t), strconv.Itoa(t.Count), t.SnapshotID})
	}
	return s.table([]string{"AT", "DATASET", "CLUSTER", "STATE", "COUNT", "SNAPSHOT"}, rows, func(row int) lipgloss.Style {
		return s.transition(transitions[row])
	})
}

func renderRefresh(s styles, r *client.RefreshResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s snapshot %s from %s in %s\n", s.normal.Render("refreshed"), r.SnapshotID, orDash(r.Source), r.Duration.Round(time.Millisecond))
	if r.ArchiveKey != "" {
		fmt.Fprintf(&sb, "%s %s\n", s.muted.Render("archived as"), r.ArchiveKey)
	}
	for _, t := range r.Transitions {
		fmt.Fprintf(&sb, "%s %s/%s (%d)\n", s.transition(t).Render(transitionState(t)), t.Dataset, t.Cluster, t.Count)
	}
	sinks := make([]string, 0, len(r.SinkErrors))
	for sink := range r.SinkErrors {
		sinks = append(sinks, sink)
	}
	sort.Strings(sinks)
	for _, sink := range sinks {
		fmt.Fprintf(&sb, "%s %s: %s\n", s.warning.Render("sink failed"), sink, r.SinkErrors[sink])
	}
	return strings.TrimRight(sb.String(), "\n")
}
