package exports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/fdg312/menu-batches/internal/batches"
	"github.com/jung-kurt/gofpdf"
)

// GenerateCSV writes one row per planned meal and a TOTAL row per day.
func GenerateCSV(batch *batches.BatchDTO, cal *batches.Calendar) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"day", "date", "meal_type", "description", "calories", "protein", "carbs", "fats"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, day := range cal.Days {
		date := dateOf(cal.Year, cal.Month, day.Day)
		for _, it := range day.Items {
			row := []string{
				strconv.Itoa(day.Day), date, string(it.MealType), it.Description,
				formatAmount(it.Calories), formatAmount(it.Protein), formatAmount(it.Carbs), formatAmount(it.Fats),
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
		total := []string{
			strconv.Itoa(day.Day), date, "TOTAL", "",
			formatAmount(day.Totals.Calories), formatAmount(day.Totals.Protein),
			formatAmount(day.Totals.Carbs), formatAmount(day.Totals.Fats),
		}
		if err := w.Write(total); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GeneratePDF renders the month as a table of days with all four meal slots.
func GeneratePDF(batch *batches.BatchDTO, cal *batches.Calendar) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// core fonts are cp1252, translate UTF-8 input
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(fmt.Sprintf("Meal plan %d-%02d", cal.Year, cal.Month), true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	title := time.Date(cal.Year, time.Month(cal.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
	pdf.Cell(0, 10, tr("Meal plan: "+title))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Batch #%d  consumer %d  status %s", batch.ID, batch.ConsumerID, batch.Status))
	pdf.Ln(6)
	if batch.DietaryNotes != nil {
		pdf.MultiCell(0, 5, tr("Dietary notes: "+*batch.DietaryNotes), "", "L", false)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Days planned: %d  meals: %d  total kcal: %s",
		cal.Summary.DaysWithItems, cal.Summary.TotalItems, formatAmount(cal.Summary.TotalCalories)))
	pdf.Ln(10)

	for _, day := range cal.Days {
		drawDay(pdf, tr, cal, day)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func drawDay(pdf *gofpdf.Fpdf, tr func(string) string, cal *batches.Calendar, day batches.DayGroup) {
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 7, dateOf(cal.Year, cal.Month, day.Day))
	pdf.Ln(7)

	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(25, 6, "Meal", "1", 0, "C", false, 0, "")
	pdf.CellFormat(85, 6, "Description", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "kcal", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Protein", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Carbs", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Fats", "1", 1, "C", false, 0, "")

	for _, slot := range day.Slots() {
		pdf.CellFormat(25, 6, slot.MealType.Label(), "1", 0, "L", false, 0, "")
		pdf.CellFormat(85, 6, tr(truncate(slot.Text(), 60)), "1", 0, "L", false, 0, "")
		if slot.Item == nil {
			pdf.CellFormat(80, 6, "", "1", 1, "C", false, 0, "")
			continue
		}
		pdf.CellFormat(20, 6, formatAmount(slot.Item.Calories), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, formatAmount(slot.Item.Protein), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, formatAmount(slot.Item.Carbs), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, formatAmount(slot.Item.Fats), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 8)
	pdf.CellFormat(110, 6, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(20, 6, formatAmount(day.Totals.Calories), "1", 0, "R", false, 0, "")
	pdf.CellFormat(20, 6, formatAmount(day.Totals.Protein), "1", 0, "R", false, 0, "")
	pdf.CellFormat(20, 6, formatAmount(day.Totals.Carbs), "1", 0, "R", false, 0, "")
	pdf.CellFormat(20, 6, formatAmount(day.Totals.Fats), "1", 1, "R", false, 0, "")
	pdf.Ln(4)
}

func dateOf(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
