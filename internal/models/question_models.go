package models

// Question is read-only reference data keyed by (topic_id, question_number).
type Question struct {
	TopicID         string   `json:"topic_id" dynamodbav:"topic_id"`
	QuestionNumber  string   `json:"question_number" dynamodbav:"question_number"`
	QuestionText    string   `json:"question_text" dynamodbav:"question_text"`
	Choices         []string `json:"choices" dynamodbav:"choices"`
	MostVotedAnswer string   `json:"most_voted_answer" dynamodbav:"most_voted_answer"`
}
