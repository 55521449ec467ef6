package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QuestionNumberWidth is the zero padded width question numbers are stored with.
const QuestionNumberWidth = 4

// Bookmark points a user at the last question they marked in a topic.
// There is at most one per (user_id, topic_id).
type Bookmark struct {
	UserID         string    `json:"user_id" dynamodbav:"user_id"`
	TopicID        string    `json:"topic_id" dynamodbav:"topic_id"`
	QuestionNumber string    `json:"question_number" dynamodbav:"question_number"`
	CreatedAt      time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// NormalizeQuestionNumber pads numeric question numbers to QuestionNumberWidth
// digits ("1" -> "0001"). Anything that is not a non-negative integer is
// returned as given, minus surrounding whitespace.
func NormalizeQuestionNumber(questionNumber string) string {
	s := strings.TrimSpace(questionNumber)
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return s
	}
	return fmt.Sprintf("%0*d", QuestionNumberWidth, n)
}
