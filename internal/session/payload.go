package session

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/talentgate/exam-backend/internal/model"
)

// BuildSubmission assembles the submit-exam payload. Answered ids never
// appear in the skipped list, and both lists are ordered by question id.
func BuildSubmission(token string, responses map[int]string, skipped map[int]struct{}, typ model.SubmissionType, reason string) model.Submission {
	records := make([]model.ResponseRecord, 0, len(responses))
	for qid, v := range responses {
		records = append(records, model.ResponseRecord{QuestionID: qid, SelectedOption: strings.TrimSpace(v)})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].QuestionID < records[j].QuestionID })

	skippedIDs := make([]int, 0, len(skipped))
	for qid := range skipped {
		if _, answered := responses[qid]; answered {
			continue
		}
		skippedIDs = append(skippedIDs, qid)
	}
	sort.Ints(skippedIDs)

	return model.Submission{
		Token:            token,
		Responses:        records,
		SkippedQuestions: skippedIDs,
		SubmissionType:   typ,
		Reason:           reason,
	}
}

// FormatOption coerces a recorded option value to its trimmed string form.
func FormatOption(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case fmt.Stringer:
		return strings.TrimSpace(x.String())
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
