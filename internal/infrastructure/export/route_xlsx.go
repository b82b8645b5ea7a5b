// Package export renders approval routes as spreadsheets.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
)

// SheetName is the name of the single sheet of an exported route
const SheetName = "Approval Route"

// tableRow is the first row of the approver table, below the order summary
const tableRow = 6

var tableHeader = []interface{}{"Sequence", "Approver", "Role", "Min Amount", "Max Amount", "Lock Amount Total", "State"}

// RouteExporter implements port.RouteExporter with excelize
type RouteExporter struct {
	logger *zap.Logger
}

// NewRouteExporter creates a new xlsx route exporter
func NewRouteExporter(logger *zap.Logger) *RouteExporter {
	return &RouteExporter{logger: logger}
}

// Export writes the order summary followed by one row per approver
func (e *RouteExporter) Export(order *entity.PurchaseOrder, rows []port.RouteRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	summary := [][]interface{}{
		{"Order", order.Name},
		{"Amount Total", order.AmountTotal.InexactFloat64()},
		{"Currency", order.CurrencyCode},
		{"State", string(order.State)},
	}
	for i, line := range summary {
		if err := e.setRow(f, 1, i+1, line); err != nil {
			return nil, err
		}
	}

	if err := e.setRow(f, 1, tableRow, tableHeader); err != nil {
		return nil, err
	}

	for i, row := range rows {
		var maxAmount interface{} = ""
		if row.MaxAmount.Valid {
			maxAmount = row.MaxAmount.Decimal.InexactFloat64()
		}

		lock := "No"
		if row.LockAmountTotal {
			lock = "Yes"
		}

		line := []interface{}{
			row.Sequence,
			row.Approver,
			row.Role,
			row.MinAmount.InexactFloat64(),
			maxAmount,
			lock,
			string(row.State),
		}
		if err := e.setRow(f, 1, tableRow+1+i, line); err != nil {
			return nil, err
		}
	}

	e.styleHeader(f)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Route exported",
		zap.Int64("order_id", order.ID),
		zap.Int("approvers", len(rows)))

	return buf.Bytes(), nil
}

func (e *RouteExporter) setRow(f *excelize.File, col, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

// styleHeader is cosmetic; failures are logged and ignored
func (e *RouteExporter) styleHeader(f *excelize.File) {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		e.logger.Warn("Failed to create header style", zap.Error(err))
		return
	}

	first, _ := excelize.CoordinatesToCellName(1, tableRow)
	last, _ := excelize.CoordinatesToCellName(len(tableHeader), tableRow)
	if err := f.SetCellStyle(SheetName, first, last, style); err != nil {
		e.logger.Warn("Failed to style header", zap.Error(err))
	}
	if err := f.SetColWidth(SheetName, "B", "C", 24); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}
}

var _ port.RouteExporter = (*RouteExporter)(nil)
