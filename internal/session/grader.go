package session

import "github.com/testply/guestexam-backend/internal/model"

// LocalGrader scores an attempt in memory against the definition's
// answer key: correct/total * 100. It is the fallback used when no
// authoritative server-side grader is wired in.
type LocalGrader struct{}

func (LocalGrader) Score(def *model.ExamDefinition, answers map[string]string) (float64, error) {
	total := len(def.Questions)
	if total == 0 {
		return 0, nil
	}

	correct := 0
	for _, q := range def.Questions {
		if picked, ok := answers[q.ID.String()]; ok && picked == q.CorrectOptionID {
			correct++
		}
	}
	return float64(correct) / float64(total) * 100, nil
}
