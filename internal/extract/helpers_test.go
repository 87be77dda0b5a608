package extract

import "github.com/xuri/excelize/v2"

func openForEdit(path string) (*excelize.File, error) {
	return excelize.OpenFile(path)
}
