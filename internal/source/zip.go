package source

import "strings"

// Zip turns a cell matrix into rows using the first row as column names.
// Missing trailing cells become "", cells past the header are ignored and
// rows with no content are skipped.
func Zip(matrix [][]string) []Row {
	if len(matrix) == 0 {
		return nil
	}

	header := make([]string, len(matrix[0]))
	for i, h := range matrix[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([]Row, 0, len(matrix)-1)
	for _, cells := range matrix[1:] {
		if blank(cells) {
			continue
		}
		r := make(Row, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(cells) {
				r[name] = cells[i]
			} else {
				r[name] = ""
			}
		}
		rows = append(rows, r)
	}
	return rows
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
