package report

import "encoding/json"

// detailJSON serializes the full report for storage in reports.detail_json.
// Marshal failure here would mean Report contains an unsupported type,
// which never happens for this struct, so the error is folded into an
// empty object rather than propagated.
func detailJSON(rep *Report) string {
	data, err := json.Marshal(rep)
	if err != nil {
		return "{}"
	}
	return string(data)
}
