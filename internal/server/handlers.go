package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spacesedan/quiznox/internal/db"
	"github.com/spacesedan/quiznox/internal/models"
)

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	topicID := r.URL.Query().Get("topicId")
	if topicID == "" {
		writeMessage(w, http.StatusBadRequest, "Missing topicId parameter")
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	questions, err := s.questions.ListByTopic(ctx, topicID, db.Options{})
	if err != nil {
		s.fail(w, r, err, writeMessage)
		return
	}
	if len(questions) == 0 {
		writeMessage(w, http.StatusNotFound, "No items found")
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

// questionNumber accepts both "12" and 12 on the wire.
type questionNumber string

func (q *questionNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*q = questionNumber(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*q = questionNumber(n.String())
	return nil
}

type bookmarkRequest struct {
	TopicID        string         `json:"topicId"`
	QuestionNumber questionNumber `json:"questionNumber"`
}

func (s *Server) saveBookmark(w http.ResponseWriter, r *http.Request) {
	var req bookmarkRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, nil, "invalid request body")
		return
	}
	if req.TopicID == "" || req.QuestionNumber == "" {
		writeEnvelope(w, http.StatusBadRequest, nil, "topicId and questionNumber are required")
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	bookmark, err := s.bookmarks.Upsert(ctx, userIDFrom(r.Context()), req.TopicID, string(req.QuestionNumber), db.Options{})
	if err != nil {
		s.fail(w, r, err, func(w http.ResponseWriter, status int, msg string) {
			writeEnvelope(w, status, nil, msg)
		})
		return
	}
	writeEnvelope(w, http.StatusOK, bookmark, "bookmark saved")
}

func (s *Server) getBookmark(w http.ResponseWriter, r *http.Request) {
	topicID := r.URL.Query().Get("topicId")
	if topicID == "" {
		writeEnvelope(w, http.StatusBadRequest, nil, "topicId is required")
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	bookmark, found, err := s.bookmarks.Get(ctx, userIDFrom(r.Context()), topicID, db.Options{})
	if err != nil {
		s.fail(w, r, err, func(w http.ResponseWriter, status int, msg string) {
			writeEnvelope(w, status, nil, msg)
		})
		return
	}
	if !found {
		writeEnvelope(w, http.StatusOK, nil, "no bookmark")
		return
	}
	writeEnvelope(w, http.StatusOK, bookmark, "bookmark found")
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	// unparseable limits fall back to the default
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	ctx, cancel := s.storeContext(r)
	defer cancel()

	reviews, err := s.reviews.List(ctx, limit, db.Options{})
	if err != nil {
		s.fail(w, r, err, writeMessage)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

type reviewRequest struct {
	Content string `json:"content"`
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	review, err := s.reviews.Create(ctx, models.Review{
		ReviewID:  s.newID(),
		UserID:    userIDFrom(r.Context()),
		Content:   req.Content,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}, db.Options{})
	if err != nil {
		s.fail(w, r, err, writeMessage)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *Server) updateReview(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "review_id")

	ctx, cancel := s.storeContext(r)
	defer cancel()

	if _, err := s.reviews.Authorize(ctx, reviewID, userIDFrom(r.Context()), db.Options{}); err != nil {
		s.fail(w, r, err, writeMessage)
		return
	}

	var req reviewRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	review, err := s.reviews.Update(ctx, reviewID, req.Content, db.Options{})
	if err != nil {
		s.fail(w, r, err, writeMessage)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (s *Server) deleteReview(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "review_id")

	ctx, cancel := s.storeContext(r)
	defer cancel()

	if _, err := s.reviews.Authorize(ctx, reviewID, userIDFrom(r.Context()), db.Options{}); err != nil {
		s.fail(w, r, err, writeMessage)
		return
	}
	if err := s.reviews.Delete(ctx, reviewID, db.Options{}); err != nil {
		s.fail(w, r, err, writeMessage)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, write func(http.ResponseWriter, int, string)) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("[Server] Request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	write(w, status, msg)
}

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
