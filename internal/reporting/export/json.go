package export

import (
	"encoding/json"
	"fmt"

	domain "fleet-analytics/internal/reporting/domain"
)

type jsonRenderer struct{}

// Render serializes the report structure-preservingly.
func (jsonRenderer) Render(report *domain.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("%w: nil report", domain.ErrRender)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}
	return data, nil
}

func (jsonRenderer) ContentType() string { return "application/json" }

func (jsonRenderer) Ext() string { return "json" }
