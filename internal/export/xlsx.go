// Package export renders generated plans as XLSX workbooks.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Skufu/nutrifit/internal/health"
	"github.com/Skufu/nutrifit/internal/plan"
)

const (
	DietSheet    = "Diet Plan"
	WorkoutSheet = "Workout Plan"
	SummarySheet = "Summary"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	dietHeaders    = []string{"Day", "Meal", "Time", "Name", "Food Items", "Calories", "Protein (g)", "Carbs (g)", "Fat (g)", "Instructions"}
	dietWidths     = []float64{6, 12, 8, 36, 48, 10, 12, 10, 10, 48}
	workoutHeaders = []string{"Day", "Focus", "Exercise", "Intensity", "Sets", "Reps", "Duration (min)", "Calories", "Instructions"}
	workoutWidths  = []float64{6, 12, 30, 10, 6, 18, 14, 10, 48}
)

// PlanXLSX writes p as a workbook with one row per entry and a summary sheet.
// When a is non-nil the summary sheet also carries the risk levels and the
// assessment summary the plan was built from.
func PlanXLSX(p plan.Plan, a *health.RiskAssessment) ([]byte, error) {
	switch v := p.(type) {
	case *plan.DietPlan:
		return dietXLSX(v, a)
	case *plan.WorkoutPlan:
		return workoutXLSX(v, a)
	}
	return nil, fmt.Errorf("export: unsupported plan type %T", p)
}

func dietXLSX(p *plan.DietPlan, a *health.RiskAssessment) ([]byte, error) {
	var rows [][]interface{}
	for _, d := range p.Days {
		for _, m := range d.Meals {
			rows = append(rows, []interface{}{
				d.Day, m.MealType, m.Time, m.Name, strings.Join(m.FoodItems, ", "),
				m.Calories, m.Protein, m.Carbs, m.Fat, m.Instructions,
			})
		}
	}
	summary := [][]interface{}{
		{"Plan type", string(p.PlanType)},
		{"Catalog version", p.CatalogVersion},
		{"Days", len(p.Days)},
		{"Daily calories", p.Calories.Daily},
		{"Maintenance calories", p.Calories.Maintenance},
		{"Goal adjustment", p.Calories.GoalDelta},
		{"Risk adjustment", p.Calories.RiskAdjustment},
		{"Notes", p.Notes},
	}
	summary = append(summary, assessmentRows(a)...)
	for _, w := range p.Warnings {
		summary = append(summary, []interface{}{"Warning", w.Message})
	}
	return build(DietSheet, dietHeaders, dietWidths, rows, summary)
}

func workoutXLSX(p *plan.WorkoutPlan, a *health.RiskAssessment) ([]byte, error) {
	var rows [][]interface{}
	for _, d := range p.Days {
		for _, e := range d.Exercises {
			rows = append(rows, []interface{}{
				d.Day, d.Focus, e.Name, e.Intensity, e.Sets, e.Reps,
				e.Duration, e.CaloriesBurned, e.Instructions,
			})
		}
	}
	summary := [][]interface{}{
		{"Plan type", string(p.PlanType)},
		{"Catalog version", p.CatalogVersion},
		{"Days", len(p.Days)},
		{"Daily burn target", p.DailyBurnTarget},
		{"Notes", p.Notes},
	}
	summary = append(summary, assessmentRows(a)...)
	for _, w := range p.Warnings {
		summary = append(summary, []interface{}{"Warning", w.Message})
	}
	return build(WorkoutSheet, workoutHeaders, workoutWidths, rows, summary)
}

func assessmentRows(a *health.RiskAssessment) [][]interface{} {
	if a == nil {
		return nil
	}
	rows := [][]interface{}{{"Overall risk", a.Overall.String()}}
	for _, cr := range a.Conditions {
		level := cr.Level.String()
		if cr.Probability > 0 {
			level = fmt.Sprintf("%s (%.0f%%)", level, cr.Probability*100)
		}
		rows = append(rows, []interface{}{string(cr.Condition) + " risk", level})
	}
	deficiencies := "none"
	if len(a.Deficiencies) > 0 {
		deficiencies = strings.Join(a.Deficiencies, ", ")
	}
	rows = append(rows,
		[]interface{}{"Deficiencies", deficiencies},
		[]interface{}{"Assessment summary", a.Summary},
	)
	return rows
}

func build(sheet string, headers []string, widths []float64, rows, summary [][]interface{}) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	if err := writeRows(f, sheet, 2, rows); err != nil {
		return nil, err
	}
	if err := writeRows(f, SummarySheet, 1, summary); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 22); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, start int, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, start+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %s: %w", start+i, sheet, err)
		}
	}
	return nil
}
