package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"childcare-billing/internal/models"
	"childcare-billing/internal/repository"
	"childcare-billing/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// exportLimit caps one export; larger tenants filter by status or guardian.
const exportLimit = 10000

var exportHeaders = []string{"Number", "Guardian ID", "Child ID", "Description", "Amount", "Status", "Due date", "Paid at"}

type ExportHandler struct {
	invoices repository.InvoiceRepository
	now      func() time.Time
}

func NewExportHandler(invoices repository.InvoiceRepository) *ExportHandler {
	return &ExportHandler{invoices: invoices, now: time.Now}
}

func (h *ExportHandler) load(c *gin.Context) ([]models.Invoice, bool) {
	s, _, ok := scope(c)
	if !ok {
		return nil, false
	}
	f, ok := invoiceFilter(c, exportLimit)
	if !ok {
		return nil, false
	}
	f.Limit, f.Offset = exportLimit, 0
	invoices, err := h.invoices.List(c.Request.Context(), s, f)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return invoices, true
}

func invoiceRow(inv *models.Invoice) []string {
	child, paid := "", ""
	if inv.ChildID != nil {
		child = fmt.Sprint(*inv.ChildID)
	}
	if inv.PaidAt != nil {
		paid = inv.PaidAt.Format("2006-01-02")
	}
	return []string{
		inv.Number,
		fmt.Sprint(inv.GuardianID),
		child,
		inv.Description,
		util.FormatCents(inv.AmountCents),
		inv.Status,
		inv.DueDate.Format("2006-01-02"),
		paid,
	}
}

// ExportCSV writes the caller's invoices as CSV.
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	invoices, ok := h.load(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"invoices_%s.csv\"",
		h.now().Format("20060102")))

	// UTF-8 BOM so spreadsheet apps detect the encoding
	_, _ = c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	_ = writer.Write(exportHeaders)
	for i := range invoices {
		_ = writer.Write(invoiceRow(&invoices[i]))
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Error().Err(err).Msg("csv export")
	}
}

// ExportXLSX writes the caller's invoices as a spreadsheet.
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	invoices, ok := h.load(c)
	if !ok {
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Invoices"
	index, err := f.NewSheet(sheet)
	if err != nil {
		respondError(c, err)
		return
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, title := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, title)
	}
	for r := range invoices {
		inv := &invoices[r]
		row := invoiceRow(inv)
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			if col == 4 {
				// amount as a number so totals work
				_ = f.SetCellValue(sheet, cell, float64(inv.AmountCents)/100)
				continue
			}
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 18)
	_ = f.SetColWidth(sheet, "B", "C", 12)
	_ = f.SetColWidth(sheet, "D", "D", 36)
	_ = f.SetColWidth(sheet, "E", "H", 12)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"invoices_%s.xlsx\"",
		h.now().Format("20060102")))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		log.Error().Err(err).Msg("xlsx export")
	}
}
