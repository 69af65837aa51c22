// Package report renders checklist entries into an xlsx workbook.
package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"merchcheck-backend/internal/dashboard"
	"merchcheck-backend/internal/media"
	"merchcheck-backend/internal/models"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

const (
	SheetName = "POP Materials Report"

	// ContentType is the xlsx media type.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxImages      = 3
	thumbnailBox   = 200
	imageRowHeight = 150
	Unavailable    = "image unavailable"
)

type Mode int

const (
	// WithImages embeds up to three thumbnails per row.
	WithImages Mode = iota
	// WithLinks lists photo URLs instead of embedding them.
	WithLinks
)

func (m Mode) String() string {
	if m == WithLinks {
		return "links"
	}
	return "images"
}

var baseHeaders = []string{
	"ID", "Employee Name", "Employee Code", "Branch", "Shop Code", "Category",
	"Model", "Display Type", "Selected Materials", "Missing Materials", "Images Count", "Date",
}

var baseWidths = []float64{8, 22, 15, 25, 12, 15, 18, 18, 35, 35, 12, 18}

// Fetcher returns the bytes of a stored photo.
type Fetcher interface {
	Fetch(ctx context.Context, obj media.Object) ([]byte, error)
}

type Generator struct {
	fetcher     Fetcher
	concurrency int
	now         func() time.Time
	logger      *log.Logger
}

func NewGenerator(fetcher Fetcher, concurrency int) *Generator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Generator{
		fetcher:     fetcher,
		concurrency: concurrency,
		now:         time.Now,
		logger:      log.WithPrefix("report"),
	}
}

// Filename is the attachment name for a report generated at t.
func Filename(t time.Time) string {
	return "pop_materials_report_" + t.Format("20060102_150405") + ".xlsx"
}

// Generate writes one row per entry followed by a summary block.
func (g *Generator) Generate(ctx context.Context, entries []models.DataEntry, mode Mode) ([]byte, error) {
	var thumbs [][][]byte
	if mode == WithImages {
		thumbs = g.thumbnails(ctx, entries)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}
	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	headers := append([]string{}, baseHeaders...)
	widths := append([]float64{}, baseWidths...)
	if mode == WithImages {
		for i := 1; i <= maxImages; i++ {
			headers = append(headers, fmt.Sprintf("Image %d", i))
			widths = append(widths, 30)
		}
	} else {
		headers = append(headers, "Image Links")
		widths = append(widths, 60)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr(SheetName, cell, h); err != nil {
			return nil, err
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, widths[i]); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, st.header); err != nil {
		return nil, err
	}
	if err := f.SetRowHeight(SheetName, 1, 30); err != nil {
		return nil, err
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	for i, e := range entries {
		row := i + 2
		values := []any{
			e.ID, e.EmployeeName, e.EmployeeCode, e.BranchName, e.ShopCode, e.Category,
			e.Model, e.DisplayType,
			strings.Join(e.SelectedMaterials, ", "),
			strings.Join(e.MissingMaterials, ", "),
			len(e.Photos),
			e.CreatedAt.Format("2006-01-02 15:04"),
		}
		if mode == WithLinks {
			urls := make([]string, 0, len(e.Photos))
			for _, p := range e.Photos {
				urls = append(urls, p.URL)
			}
			values = append(values, strings.Join(urls, "\n"))
		}

		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, start, &values); err != nil {
			return nil, err
		}

		style := st.row
		if i%2 == 1 {
			style = st.rowAlt
		}
		end, _ := excelize.CoordinatesToCellName(len(headers), row)
		if err := f.SetCellStyle(SheetName, start, end, style); err != nil {
			return nil, err
		}

		if mode == WithImages {
			if err := f.SetRowHeight(SheetName, row, imageRowHeight); err != nil {
				return nil, err
			}
			if err := g.placeImages(f, row, len(baseHeaders)+1, e.Photos, thumbs[i]); err != nil {
				return nil, err
			}
		}
	}

	if err := writeSummary(f, st, len(entries)+4, dashboard.Summarize(entries), g.now()); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// thumbnails downloads and shrinks the first photos of every entry. A nil
// slot marks a photo that could not be fetched or decoded.
func (g *Generator) thumbnails(ctx context.Context, entries []models.DataEntry) [][][]byte {
	out := make([][][]byte, len(entries))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for i, e := range entries {
		n := min(len(e.Photos), maxImages)
		out[i] = make([][]byte, n)
		for j := 0; j < n; j++ {
			p := e.Photos[j]
			eg.Go(func() error {
				data, err := g.fetcher.Fetch(ctx, media.Object{URL: p.URL, PublicID: p.PublicID, Backend: p.Backend})
				if err == nil {
					data, err = media.Thumbnail(data, thumbnailBox)
				}
				if err != nil {
					g.logger.Warn("Photo unavailable for report", "entry", e.ID, "url", p.URL, "err", err)
					return nil
				}
				out[i][j] = data
				return nil
			})
		}
	}
	_ = eg.Wait()
	return out
}

func (g *Generator) placeImages(f *excelize.File, row, firstCol int, photos []models.EntryPhoto, thumbs [][]byte) error {
	for j, data := range thumbs {
		cell, _ := excelize.CoordinatesToCellName(firstCol+j, row)
		if data == nil {
			if err := f.SetCellStr(SheetName, cell, Unavailable); err != nil {
				return err
			}
			continue
		}
		err := f.AddPictureFromBytes(SheetName, cell, &excelize.Picture{
			Extension: ".jpg",
			File:      data,
			Format: &excelize.GraphicOptions{
				AltText:         photos[j].URL,
				OffsetX:         5,
				OffsetY:         5,
				LockAspectRatio: true,
				Positioning:     "oneCell",
			},
		})
		if err != nil {
			return fmt.Errorf("failed to embed photo of row %d: %w", row, err)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, st *styles, row int, stats dashboard.Stats, now time.Time) error {
	rows := [][]any{
		{"Summary"},
		{"Total Entries", stats.Entries},
		{"Total Images", stats.Photos},
		{"Unique Employees", stats.Employees},
		{"Unique Branches", stats.Branches},
		{"Report Date", now.Format("2006-01-02 15:04:05")},
	}
	for i, values := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, row+i)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, cell, cell, st.label); err != nil {
			return err
		}
	}
	return nil
}

type styles struct {
	header, row, rowAlt, label int
}

func newStyles(f *excelize.File) (*styles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "D0D0D0", Style: 1},
		{Type: "right", Color: "D0D0D0", Style: 1},
		{Type: "top", Color: "D0D0D0", Style: 1},
		{Type: "bottom", Color: "D0D0D0", Style: 1},
	}
	cellAlign := &excelize.Alignment{Vertical: "center", WrapText: true}

	var (
		st  styles
		err error
	)
	if st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    border,
	}); err != nil {
		return nil, err
	}
	if st.row, err = f.NewStyle(&excelize.Style{Alignment: cellAlign, Border: border}); err != nil {
		return nil, err
	}
	if st.rowAlt, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"F2F2F2"}, Pattern: 1},
		Alignment: cellAlign,
		Border:    border,
	}); err != nil {
		return nil, err
	}
	if st.label, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return nil, err
	}
	return &st, nil
}
