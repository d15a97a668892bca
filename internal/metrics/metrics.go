// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuestionGenerations counts generation requests by where the questions came from
	// ("ai" or "fallback").
	QuestionGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exammgr",
		Name:      "question_generations_total",
		Help:      "Question generation requests by source.",
	}, []string{"source"})

	// QuestionsSaved counts questions persisted by import path
	// ("manual", "delimited", "generated").
	QuestionsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exammgr",
		Name:      "questions_saved_total",
		Help:      "Questions persisted by import path.",
	}, []string{"path"})

	// Submissions counts exam submissions by outcome ("graded", "duplicate", "rejected").
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exammgr",
		Name:      "submissions_total",
		Help:      "Exam submissions by outcome.",
	}, []string{"outcome"})

	// Logins counts login attempts by outcome ("success", "failure").
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exammgr",
		Name:      "logins_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})
)
