package google

import (
	"fmt"
	"strconv"
	"strings"

	"previsioni/internal/core"
)

var requiredHeaders = []string{"Date", "Description", "Amount", "Type"}

// parseRecords maps a values matrix whose first row is the header onto raw
// records. Columns are located by header name so their order does not
// matter. Rows without an ID get one derived from the tab and row number.
func parseRecords(values [][]interface{}, tab string) ([]core.Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	col := map[string]int{}
	for _, h := range append([]string{"ID", "Category"}, requiredHeaders...) {
		col[h] = indexOf(headers, h)
	}
	var missing []string
	for _, h := range requiredHeaders {
		if col[h] == -1 {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unexpected header in %s: missing %s; got headers=%v", tab, strings.Join(missing, ","), headers)
	}

	out := make([]core.Record, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		id := safeGet(row, col["ID"])
		if id == "" {
			id = tab + "!" + strconv.Itoa(i+1)
		}
		out = append(out, core.Record{
			ID:          id,
			Date:        safeGet(row, col["Date"]),
			Description: safeGet(row, col["Description"]),
			Amount:      core.RawAmount(safeGet(row, col["Amount"])),
			Type:        safeGet(row, col["Type"]),
			Category:    safeGet(row, col["Category"]),
		})
	}
	return out, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
