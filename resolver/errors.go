package resolver

import (
	"fmt"
	"strings"
)

// Chinese slot labels for clarification messages, keyed by wire slot name.
var slotLabels = map[string]string{
	"metric":  "指标",
	"company": "公司",
	"year":    "年份",
	"quarter": "季度（Q1-Q4）",
}

// MissingSlotError reports which query slots could not be filled from the
// request, the NL parse, or the heuristics.
type MissingSlotError struct {
	Slots []string // wire slot names in fixed order: metric, company, year, quarter
}

func (e *MissingSlotError) Error() string {
	return "missing slots: " + strings.Join(e.Slots, ", ")
}

// Ask renders the user-facing clarification question in Chinese.
func (e *MissingSlotError) Ask() string {
	labels := make([]string, 0, len(e.Slots))
	for _, s := range e.Slots {
		if l, ok := slotLabels[s]; ok {
			labels = append(labels, l)
		} else {
			labels = append(labels, s)
		}
	}
	return fmt.Sprintf("请补充：%s。", strings.Join(labels, "、"))
}
