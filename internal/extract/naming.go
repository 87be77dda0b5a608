package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"nhstac/pkg/contracts/domain"
)

// ErrUnrecognisedWorkbookName is returned for files that do not follow the TAC naming convention
var ErrUnrecognisedWorkbookName = errors.New("unrecognised workbook name")

var workbookNamePattern = regexp.MustCompile(`^TAC_(Trusts|FTs)_(\d{4})-(\d{2})\.xlsx$`)

// ParseWorkbookName derives sector, financial year and schema version from a workbook path
func ParseWorkbookName(path string) (domain.WorkbookMeta, error) {
	name := filepath.Base(path)

	m := workbookNamePattern.FindStringSubmatch(name)
	if m == nil {
		return domain.WorkbookMeta{}, fmt.Errorf("%w: %s", ErrUnrecognisedWorkbookName, name)
	}

	start, _ := strconv.Atoi(m[2])
	end, _ := strconv.Atoi(m[3])
	if (start+1)%100 != end {
		return domain.WorkbookMeta{}, fmt.Errorf("%w: %s: year %s-%s is not consecutive", ErrUnrecognisedWorkbookName, name, m[2], m[3])
	}

	sector := domain.SectorTrust
	if m[1] == "FTs" {
		sector = domain.SectorFT
	}

	fy := m[2] + "-" + m[3]
	return domain.WorkbookMeta{
		FileName:      name,
		Sector:        sector,
		FY:            fy,
		SchemaVersion: fy,
	}, nil
}
