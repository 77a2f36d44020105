// Package report - renders evaluation summaries for people and tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-eval/evaluation"
)

// Format selects how a summary is rendered.
type Format string

const (
	// FormatTable renders an aligned text table followed by the mAP summary.
	FormatTable Format = "table"
	// FormatJSON renders a single JSON document.
	FormatJSON Format = "json"
)

// ParseFormat resolves a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON:
		return f, nil
	default:
		return "", errors.Errorf("unsupported output format %q (supported: %s, %s)", s, FormatTable, FormatJSON)
	}
}

// Namer returns a display name for a category, or "" if it has none.
type Namer func(evaluation.CategoryID) string

// Write renders the summary in the requested format.
func Write(w io.Writer, format Format, s *evaluation.Summary, names Namer) error {
	switch format {
	case FormatTable:
		return WriteTable(w, s, names)
	case FormatJSON:
		return WriteJSON(w, s, names)
	default:
		_, err := ParseFormat(string(format))
		return err
	}
}

// WriteTable prints one row per category with both APs and their difference, then the
// mean AP under each metric and the overall difference. A name column is added when names
// is not nil.
func WriteTable(w io.Writer, s *evaluation.Summary, names Namer) error {
	t := newTable()

	header := table.Row{"Category"}
	if names != nil {
		header = append(header, "Name")
	}
	header = append(header,
		fmt.Sprintf("AP@IoU>%.2f", s.Threshold),
		fmt.Sprintf("AP@IoP>%.2f", s.Threshold),
		"Delta",
	)
	t.AppendHeader(header)

	for _, r := range s.Results {
		row := table.Row{r.CategoryID}
		if names != nil {
			row = append(row, names(r.CategoryID))
		}
		row = append(row,
			fmt.Sprintf("%.4f", r.APIoU),
			fmt.Sprintf("%.4f", r.APIoP),
			fmt.Sprintf("%+.4f", r.Delta()),
		)
		t.AppendRow(row)
	}

	footer := table.Row{"mAP"}
	if names != nil {
		footer = append(footer, "")
	}
	footer = append(footer,
		fmt.Sprintf("%.4f", s.MeanAPIoU),
		fmt.Sprintf("%.4f", s.MeanAPIoP),
		fmt.Sprintf("%+.4f", s.Delta()),
	)
	t.AppendFooter(footer)

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return errors.Wrap(err, "write table")
	}

	_, err := fmt.Fprintf(w, "\nmAP@IoU>%.2f = %.4f\nmAP@IoP>%.2f = %.4f\nOverall delta: %+.4f\n",
		s.Threshold, s.MeanAPIoU, s.Threshold, s.MeanAPIoP, s.Delta())
	return errors.Wrap(err, "write summary")
}

type categoryJSON struct {
	CategoryID evaluation.CategoryID `json:"category_id"`
	Name       string                `json:"name,omitempty"`
	APIoU      float64               `json:"ap_iou"`
	APIoP      float64               `json:"ap_iop"`
	Delta      float64               `json:"delta"`
}

type summaryJSON struct {
	Threshold  float64        `json:"threshold"`
	Categories []categoryJSON `json:"categories"`
	MeanAPIoU  float64        `json:"map_iou"`
	MeanAPIoP  float64        `json:"map_iop"`
	Delta      float64        `json:"delta"`
}

// WriteJSON encodes the summary, including the per-category and overall deltas.
func WriteJSON(w io.Writer, s *evaluation.Summary, names Namer) error {
	out := summaryJSON{
		Threshold:  s.Threshold,
		Categories: make([]categoryJSON, 0, len(s.Results)),
		MeanAPIoU:  s.MeanAPIoU,
		MeanAPIoP:  s.MeanAPIoP,
		Delta:      s.Delta(),
	}
	for _, r := range s.Results {
		c := categoryJSON{
			CategoryID: r.CategoryID,
			APIoU:      r.APIoU,
			APIoP:      r.APIoP,
			Delta:      r.Delta(),
		}
		if names != nil {
			c.Name = names(r.CategoryID)
		}
		out.Categories = append(out.Categories, c)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(out), "encode summary")
}

// WriteCurve prints an envelope-adjusted precision-recall curve, one row per point, with
// the category's AP in the footer.
func WriteCurve(w io.Writer, curve evaluation.PRCurve, ap float64) error {
	t := newTable()
	t.AppendHeader(table.Row{"#", "Recall", "Precision"})
	for i := 0; i < curve.Len(); i++ {
		t.AppendRow(table.Row{i, fmt.Sprintf("%.4f", curve.Recall[i]), fmt.Sprintf("%.4f", curve.Precision[i])})
	}
	t.AppendFooter(table.Row{"AP", "", fmt.Sprintf("%.4f", ap)})

	_, err := fmt.Fprintln(w, t.Render())
	return errors.Wrap(err, "write curve")
}

// newTable keeps headers and footers in the case they were written in.
func newTable() table.Writer {
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault

	t := table.NewWriter()
	t.SetStyle(style)
	return t
}
