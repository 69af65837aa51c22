package report

import (
	"bytes"
	"context"
	"io"

	"merchcheck-backend/internal/dashboard"
	"merchcheck-backend/internal/media"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
)

// Publisher stores finished reports on the media host.
type Publisher interface {
	Configured() bool
	UploadDocument(ctx context.Context, r io.Reader, name, folder string) (media.Object, error)
}

// GET /export_excel and GET /export_excel_simple, with the dashboard filters.
// The workbook goes to the media host when one is configured; otherwise, or
// when that upload fails, it is streamed back as an attachment.
func ExportHandler(entries *dashboard.Service, gen *Generator, pub Publisher, mode Mode) fiber.Handler {
	logger := log.WithPrefix("report")
	return func(c *fiber.Ctx) error {
		f, err := dashboard.FiltersFromQuery(c)
		if err != nil {
			return err
		}
		ctx := c.UserContext()

		rows, err := entries.Entries(ctx, f)
		if err != nil {
			return err
		}
		data, err := gen.Generate(ctx, rows, mode)
		if err != nil {
			return err
		}

		name := Filename(gen.now())
		logger.Info("Report generated", "entries", len(rows), "mode", mode, "size", humanize.Bytes(uint64(len(data))))

		if pub.Configured() {
			obj, err := pub.UploadDocument(ctx, bytes.NewReader(data), name, media.FolderReports)
			if err == nil {
				return c.Redirect(obj.URL)
			}
			logger.Warn("Report upload failed, streaming instead", "err", err)
		}

		c.Set(fiber.HeaderContentType, ContentType)
		c.Attachment(name)
		return c.Send(data)
	}
}
