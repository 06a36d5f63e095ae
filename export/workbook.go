package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	ConsumptionSheet = "Consumption"
	LossSheet        = "Losses"
)

var (
	consumptionHeadings = []string{"ID", "ActionID", "LotID", "Item", "Quantity", "CostPerUnit", "Cost", "ConsumedAt"}
	lossHeadings        = []string{"ID", "ActionID", "Category", "Quantity", "CostPerUnit", "Cost", "Note", "RecordedAt"}
)

// WriteWorkbook writes doc as an XLSX workbook with one sheet per record
// type. Decimals are written as text so no precision is lost.
func WriteWorkbook(w io.Writer, doc *Document) error {
	f := excelize.NewFile()
	defer f.Close()

	consumptions, losses, err := doc.Records()
	if err != nil {
		return err
	}

	if err := f.SetSheetName("Sheet1", ConsumptionSheet); err != nil {
		return err
	}
	rows := make([][]interface{}, 0, len(consumptions))
	for _, c := range consumptions {
		rows = append(rows, []interface{}{
			string(c.ID), string(c.ActionID), string(c.LotID), string(c.Item),
			c.Quantity.String(), c.UnitCost.String(), c.Cost().String(),
			c.ConsumedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	if err := writeSheet(f, ConsumptionSheet, consumptionHeadings, rows); err != nil {
		return err
	}

	if _, err := f.NewSheet(LossSheet); err != nil {
		return err
	}
	rows = make([][]interface{}, 0, len(losses))
	for _, l := range losses {
		rows = append(rows, []interface{}{
			string(l.ID), string(l.ActionID), string(l.Category),
			l.Quantity.String(), l.CostPerUnit.String(), l.Cost().String(),
			l.Note, l.RecordedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	if err := writeSheet(f, LossSheet, lossHeadings, rows); err != nil {
		return err
	}

	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, headings []string, rows [][]interface{}) error {
	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, r+2, err)
		}
	}
	return nil
}
