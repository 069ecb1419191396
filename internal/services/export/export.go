// Package export writes testimonies to an Excel workbook for review outside
// the API.
package export

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/summary"
	"github.com/killallgit/testimony-api/internal/services/testimonies"
)

const (
	TestimoniesSheet = "Testimonios"
	TagsSheet        = "Etiquetas"
)

var header = []interface{}{
	"ID", "Origen", "Estado", "Fecha", "Duración (s)", "Etiquetas", "Resumen", "Caracteres transcripción",
}

// Lister is the read side of the testimony repository
type Lister interface {
	List(ctx context.Context, filter testimonies.ListFilter) ([]models.Testimony, int64, error)
}

// Collect pages through every testimony matching filter. Limit and Offset
// on the filter are ignored.
func Collect(ctx context.Context, repo Lister, filter testimonies.ListFilter) ([]models.Testimony, error) {
	filter.Limit = testimonies.MaxPageSize
	filter.Offset = 0

	var all []models.Testimony
	for {
		page, total, err := repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || int64(len(all)) >= total {
			return all, nil
		}
		filter.Offset += len(page)
	}
}

// WriteWorkbook writes one row per testimony plus a tag frequency sheet
func WriteWorkbook(w io.Writer, rows []models.Testimony) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TestimoniesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := f.SetSheetRow(TestimoniesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	_ = f.SetCellStyle(TestimoniesSheet, "A1", "H1", bold)
	_ = f.SetColWidth(TestimoniesSheet, "F", "F", 30)
	_ = f.SetColWidth(TestimoniesSheet, "G", "G", 80)
	_ = f.SetPanes(TestimoniesSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	counts := map[string]int{}
	for i, t := range rows {
		tags := Tags(t)
		for _, tag := range tags {
			counts[tag]++
		}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			t.ID,
			t.Origin,
			string(t.TranscriptStatus),
			recordedAt(t),
			float64(t.AudioDurationMS) / 1000,
			strings.Join(tags, ", "),
			t.SummaryText(),
			len([]rune(t.TranscriptText())),
		}
		if err := f.SetSheetRow(TestimoniesSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", t.ID, err)
		}
		summaryCell, _ := excelize.CoordinatesToCellName(7, i+2)
		_ = f.SetCellStyle(TestimoniesSheet, summaryCell, summaryCell, wrap)
	}

	if err := writeTagSheet(f, counts, bold); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTagSheet(f *excelize.File, counts map[string]int, style int) error {
	if _, err := f.NewSheet(TagsSheet); err != nil {
		return fmt.Errorf("create tag sheet: %w", err)
	}
	if err := f.SetSheetRow(TagsSheet, "A1", &[]interface{}{"Etiqueta", "Testimonios"}); err != nil {
		return err
	}
	_ = f.SetCellStyle(TagsSheet, "A1", "B1", style)

	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})

	for i, tag := range tags {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(TagsSheet, cell, &[]interface{}{tag, counts[tag]}); err != nil {
			return err
		}
	}
	return nil
}

// Tags merges the stored tags with any doctrinal tags still embedded in a
// legacy summary, in first-seen order.
func Tags(t models.Testimony) []string {
	seen := map[string]bool{}
	var out []string
	for _, tag := range slices.Concat([]string(t.Tags), summary.ExtractTags(t.SummaryText())) {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func recordedAt(t models.Testimony) string {
	d := time.Time(t.RecordedAt)
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}
