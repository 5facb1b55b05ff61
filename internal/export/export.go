// Package export renders habits as an xlsx workbook.
package export

import (
	"fmt"
	"io"
	"strconv"

	"habittracker/internal/models"

	"github.com/xuri/excelize/v2"
)

const DefaultSheetName = "Привычки"

var headers = []string{
	"ID", "Пользователь", "Место", "Время", "Действие", "Приятная",
	"Связанная приятная", "Периодичность", "Вознаграждение", "Длительность, сек",
	"Связь", "Опубликована", "Создана",
}

var colWidths = []float64{8, 14, 25, 10, 35, 11, 18, 16, 25, 16, 10, 13, 18}

// HabitsXLSX writes habits to w as a single-sheet workbook with a header row.
func HabitsXLSX(w io.Writer, sheetName string, habits []models.Habit) error {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	f := excelize.NewFile()
	defer f.Close()

	// Переименовываем стандартный лист
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
	}

	style, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err == nil {
		lastCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheetName, "A1", lastCell, style)
	}

	for i := range habits {
		row := i + 2
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", row), habitRow(&habits[i])); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
	}

	for i, width := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheetName, col, col, width)
	}
	_ = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func habitRow(h *models.Habit) []interface{} {
	return []interface{}{
		h.ID,
		optionalID(h.UserID),
		h.Place,
		h.Time.String(),
		h.Action,
		boolToYesNo(h.IsPleasantHabit),
		optionalID(h.PleasantHabitID),
		h.Periodicity.String(),
		optionalText(h.Reward),
		h.EstimatedDuration,
		optionalID(h.LinkedTo),
		boolToYesNo(h.IsPublished),
		h.CreatedAt.Format("02.01.2006 15:04"),
	}
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func optionalText(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// boolToYesNo преобразует bool в "Да"/"Нет"
func boolToYesNo(b bool) string {
	if b {
		return "Да"
	}
	return "Нет"
}
