package models

import "time"

// MaxReviewContentLength is counted in characters, after trimming.
const MaxReviewContentLength = 500

type Review struct {
	ReviewID  string     `json:"review_id" dynamodbav:"review_id" validate:"required"`
	UserID    string     `json:"user_id" dynamodbav:"user_id" validate:"required"`
	Content   string     `json:"content" dynamodbav:"content" validate:"required,max=500"`
	CreatedAt time.Time  `json:"created_at" dynamodbav:"created_at" validate:"required"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" dynamodbav:"updated_at,omitempty"`
}
