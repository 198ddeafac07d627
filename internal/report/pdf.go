package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
)

const (
	pdfFont       = "report"
	pdfStockRows  = 20
	pdfLineHeight = 6.0
)

// buildPDF lays out a condensed copy of the report. fpdf's core fonts have
// no Hangul glyphs, so a UTF-8 TTF is always required.
func buildPDF(v *reportView, fontPath string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddUTF8Font(pdfFont, "", fontPath)
	if pdf.Err() {
		return nil, fmt.Errorf("failed to load font: %w", pdf.Error())
	}
	pdf.AddPage()

	pdf.SetFont(pdfFont, "", 16)
	pdf.CellFormat(0, 10, v.Title, "", 1, "C", false, 0, "")
	pdf.SetFont(pdfFont, "", 9)
	pdf.CellFormat(0, 5, v.KoreanDate, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	if v.Degraded {
		paragraph(pdf, "데이터 일부 미수집: "+v.DegradedReason)
	}

	heading(pdf, "시장 지수")
	paragraph(pdf, fmt.Sprintf("KOSPI %.2f (%s)   KOSDAQ %.2f (%s)",
		v.Indices.KOSPI.Current, FormatChangeRate(v.Indices.KOSPI.ChangeRate),
		v.Indices.KOSDAQ.Current, FormatChangeRate(v.Indices.KOSDAQ.ChangeRate)))

	heading(pdf, "시황 요약")
	paragraph(pdf, v.Summary)

	heading(pdf, "주요 하이라이트")
	bullets(pdf, v.Highlights)

	if len(v.Themes) > 0 {
		heading(pdf, "오늘의 테마")
		for _, t := range v.Themes {
			names := make([]string, 0, len(t.RepresentativeStocks))
			for _, s := range t.RepresentativeStocks {
				names = append(names, s.Name)
			}
			paragraph(pdf, fmt.Sprintf("%s [%s] 평균 %s, %d종목: %s",
				t.Name, t.MegaSector, FormatChangeRate(t.AvgChangeRate), t.StockCount, strings.Join(names, ", ")))
		}
	}

	stockTable(pdf, "급등 종목", v.Surge)
	stockTable(pdf, "급락 종목", v.Plunge)

	heading(pdf, "내일의 숙제")
	if len(v.Homework) == 0 {
		paragraph(pdf, "특별한 점검 사항이 없습니다.")
	} else {
		bullets(pdf, v.Homework)
	}

	if pdf.Err() {
		return nil, pdf.Error()
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}
	return buf.Bytes(), nil
}

func heading(pdf *fpdf.Fpdf, text string) {
	pdf.Ln(3)
	pdf.SetFont(pdfFont, "", 12)
	pdf.CellFormat(0, 8, text, "B", 1, "L", false, 0, "")
	pdf.SetFont(pdfFont, "", 9)
	pdf.Ln(1)
}

func paragraph(pdf *fpdf.Fpdf, text string) {
	pdf.MultiCell(0, pdfLineHeight-1, text, "", "L", false)
}

func bullets(pdf *fpdf.Fpdf, items []string) {
	for _, item := range items {
		pdf.MultiCell(0, pdfLineHeight-1, "• "+item, "", "L", false)
	}
}

func stockTable(pdf *fpdf.Fpdf, title string, stocks []domain.ClassifiedStock) {
	if len(stocks) == 0 {
		return
	}
	heading(pdf, title)

	widths := []float64{70, 40, 30, 25, 25}
	header := []string{"종목", "섹터", "현재가", "등락률", "거래량"}
	pdf.SetFillColor(245, 246, 248)
	for i, h := range header {
		pdf.CellFormat(widths[i], pdfLineHeight, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	for i, s := range stocks {
		if i == pdfStockRows {
			break
		}
		pdf.CellFormat(widths[0], pdfLineHeight, fmt.Sprintf("%s (%s)", s.Name, s.Ticker), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], pdfLineHeight, s.Sector, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], pdfLineHeight, FormatPrice(s.CurrentPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], pdfLineHeight, FormatChangeRate(s.ChangeRate), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], pdfLineHeight, FormatVolume(s.Volume), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
}
