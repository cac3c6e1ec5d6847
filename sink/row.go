package sink

import (
	"fmt"
	"strings"

	"github.com/use-agent/slotwatch/models"
)

const (
	rowBrokenURLs = 5
	rowErrors     = 3
	rowSlots      = 10
	rowSlotText   = 50
)

// Header is the column header of the monitoring table.
func Header() []any {
	h := []any{
		"날짜", "시간", "페이지제목", "상태", "접근상태",
		"총슬롯수", "총링크수", "깨진링크수",
		"깨진링크목록", "오류",
	}
	for i := 1; i <= rowSlots; i++ {
		idx := models.SlotIndex(i)
		h = append(h, idx+"_타입", idx+"_내용")
	}
	return h
}

// BuildRow flattens r into one table row in Header order. Slot columns
// are only present for the slots the run found.
func BuildRow(r *models.RunResult) []any {
	urls := make([]string, 0, rowBrokenURLs)
	for i, bl := range r.BrokenLinks {
		if i == rowBrokenURLs {
			break
		}
		urls = append(urls, bl.URL)
	}
	errs := r.Errors
	if len(errs) > rowErrors {
		errs = errs[:rowErrors]
	}

	row := []any{
		r.Date,
		r.Time,
		r.PageTitle,
		string(r.Status),
		string(r.AccessStatus),
		r.TotalSlots,
		r.TotalLinks,
		r.BrokenLinkCount,
		strings.Join(urls, ", "),
		strings.Join(errs, ", "),
	}
	for i, s := range r.Slots {
		if i == rowSlots {
			break
		}
		row = append(row, s.Type, models.Truncate(s.Text, rowSlotText))
	}
	return row
}

// stringsOf renders a row for text-only tables.
func stringsOf(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprint(v)
	}
	return out
}
