// Package export 线索导出（Excel）
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/entity"
)

// LeadSheetName 导出工作表名称
const LeadSheetName = "Leads"

// LeadExportHeader 导出表头
var LeadExportHeader = []string{
	"ID",
	"IA",
	"Name",
	"Phone",
	"Message",
	"Resume",
	"Created At",
	"Updated At",
}

var leadColumnWidths = []float64{8, 20, 20, 18, 60, 40, 22, 22}

// WriteLeadsXLSX 将线索写为 xlsx 并输出到 w
func WriteLeadsXLSX(w io.Writer, iaName string, leads []*entity.Lead) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(LeadSheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	// 删除默认的 Sheet1
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	// 设置表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	// 写入表头
	for col, header := range LeadExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(LeadSheetName, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(LeadSheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(LeadSheetName, name, name, leadColumnWidths[col]); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// 写入数据行
	for i, lead := range leads {
		message, err := json.Marshal(lead.Message())
		if err != nil {
			return fmt.Errorf("failed to encode lead %d message: %w", lead.ID(), err)
		}
		row := []any{
			lead.ID(),
			iaName,
			deref(lead.Name()),
			deref(lead.Phone()),
			string(message),
			deref(lead.Resume()),
			lead.CreatedAt().UTC().Format(time.RFC3339),
			lead.UpdatedAt().UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(LeadSheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	// 冻结表头
	if err := f.SetPanes(LeadSheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// LeadsFilename 导出文件名
func LeadsFilename(iaID uint, now time.Time) string {
	return fmt.Sprintf("leads_ia%d_%s.xlsx", iaID, now.UTC().Format("20060102_150405"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
