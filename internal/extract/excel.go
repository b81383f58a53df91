package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/personaldrive/semidx/internal/semerr"
)

// extractExcel flattens a workbook into tab-separated rows, one sheet after
// another. Cell values are the formatted strings excelize reports, so
// formulas contribute their results rather than their expressions.
func extractExcel(content []byte) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", semerr.Wrap(semerr.KindInvalidArgument, "open spreadsheet", err)
	}
	defer wb.Close()

	var b strings.Builder
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return "", semerr.Wrap(semerr.KindInvalidArgument, fmt.Sprintf("read sheet %q", sheet), err)
		}
		for _, row := range rows {
			if rowEmpty(row) {
				continue
			}
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
