package exam

// QuestionResult is the per-question outcome of grading one attempt.
type QuestionResult struct {
	QuestionID          string `json:"question_id"`
	SelectedAnswerIndex int    `json:"selected_answer_index"`
	Correct             bool   `json:"correct"`
}

// GradeResult is the deterministic outcome of grading: the score, the
// question count captured at grading time, and the per-question breakdown
// in the test's stored order.
type GradeResult struct {
	Score          int              `json:"score"`
	TotalQuestions int              `json:"total_questions"`
	PerQuestion    []QuestionResult `json:"per_question"`
}

// Grade scores a set of answers against a test's answer key. It is pure and
// total: partial or empty answer sheets are fine (an unanswered question is
// recorded with index -1 and never correct), a test with no questions grades
// 0/0, and identical inputs always yield identical output.
func Grade(t Test, answers AnswerSheet) GradeResult {
	res := GradeResult{
		TotalQuestions: len(t.Questions),
		PerQuestion:    make([]QuestionResult, 0, len(t.Questions)),
	}
	for _, q := range t.Questions {
		selected, answered := answers[q.ID]
		if !answered {
			selected = -1
		}
		correct := answered && selected == q.CorrectAnswerIndex
		if correct {
			res.Score++
		}
		res.PerQuestion = append(res.PerQuestion, QuestionResult{
			QuestionID:          q.ID,
			SelectedAnswerIndex: selected,
			Correct:             correct,
		})
	}
	return res
}
