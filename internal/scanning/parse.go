package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// parseExpenseJSON parses the JSON a vision model returned, tolerating
// markdown fences and surrounding prose.
func parseExpenseJSON(text string) (*ExpenseData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var data ExpenseData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data.Date = normalizeDate(data.Date)
	data.Description = strings.TrimSpace(data.Description)
	if data.Description == "" {
		data.Description = "Scanned receipt"
	}

	return &data, nil
}

// normalizeDate coerces model output to YYYY-MM-DD, defaulting to
// today when the date is missing or unparseable.
func normalizeDate(date string) string {
	if date == "" {
		return time.Now().Format("2006-01-02")
	}
	if d, err := time.Parse("2006-01-02", date); err == nil {
		return d.Format("2006-01-02")
	}
	for _, format := range []string{"2006/01/02", "01/02/2006", "02-01-2006"} {
		if d, err := time.Parse(format, date); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return time.Now().Format("2006-01-02")
}
