// Package views renders the student-facing HTML pages: the attempt sheet and
// the graded result. Components write escaped markup directly to the response.
package views

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/pavelanni/exammgr/internal/exam"
	appI18n "github.com/pavelanni/exammgr/internal/i18n"
	"github.com/pavelanni/exammgr/internal/model"
)

// printer keeps the first write error so components read top to bottom.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *printer) attr(name, value string) {
	p.raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

func (p *printer) render(ctx context.Context, c templ.Component) {
	if p.err != nil {
		return
	}
	p.err = c.Render(ctx, p.w)
}

type option struct {
	letter string
	text   string
}

func options(q model.Question) []option {
	return []option{
		{"A", q.OptionA},
		{"B", q.OptionB},
		{"C", q.OptionC},
		{"D", q.OptionD},
	}
}

// Layout wraps content in the HTML document shell.
func Layout(title string, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<!DOCTYPE html><html><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		p.text(title + " | " + appI18n.T(ctx, "AppTitle"))
		p.raw(`</title></head><body><main>`)
		p.render(ctx, content)
		p.raw(`</main></body></html>`)
		return p.err
	})
}

// AttemptPage is the question sheet for an attempt. The form posts to action
// with one radio group per question and the start time the engine recorded.
func AttemptPage(v exam.AttemptView, action, csrfToken string) templ.Component {
	return Layout(v.Exam.Title, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<h1>`)
		p.text(v.Exam.Title)
		p.raw(`</h1>`)
		if v.Exam.Description != "" {
			p.raw(`<p class="description">`)
			p.text(v.Exam.Description)
			p.raw(`</p>`)
		}
		p.raw(`<p class="time-remaining"`)
		p.attr("data-seconds", strconv.Itoa(v.TimeRemaining))
		p.raw(`>`)
		p.text(appI18n.Td(ctx, "TimeRemaining", map[string]any{"Minutes": v.TimeRemaining / 60}))
		p.raw(`</p>`)

		p.raw(`<form method="post"`)
		p.attr("action", action)
		p.raw(`><input type="hidden" name="csrf_token"`)
		p.attr("value", csrfToken)
		p.raw(`><input type="hidden" name="startTime"`)
		p.attr("value", strconv.FormatInt(v.StartedAt, 10))
		p.raw(`>`)
		for _, q := range v.Questions {
			name := exam.AnswerKeyPrefix + strconv.FormatInt(q.ID, 10)
			p.raw(`<fieldset class="question"><legend>`)
			p.text(fmt.Sprintf("%d. %s", q.QuestionNumber, q.QuestionText))
			p.raw(`</legend>`)
			for _, o := range options(q) {
				p.raw(`<label><input type="radio"`)
				p.attr("name", name)
				p.attr("value", o.letter)
				p.raw(`> `)
				p.text(o.letter + ") " + o.text)
				p.raw(`</label>`)
			}
			p.raw(`</fieldset>`)
		}
		p.raw(`<button type="submit">`)
		p.text(appI18n.T(ctx, "SubmitAnswers"))
		p.raw(`</button></form>`)
		return p.err
	}))
}

// ResultPage shows a graded result with each question, the student's answer and
// the answer key.
func ResultPage(d exam.ResultDetail) templ.Component {
	return Layout(d.Exam.Title, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<h1>`)
		p.text(d.Exam.Title)
		p.raw(`</h1><p class="score">`)
		p.text(appI18n.Td(ctx, "ScoreLine", map[string]any{
			"Score":   d.Result.Score,
			"Total":   d.Result.TotalQuestions,
			"Percent": strconv.FormatFloat(d.Result.Percentage, 'f', 1, 64),
		}))
		p.raw(`</p><p class="grade">`)
		p.text(appI18n.Td(ctx, "GradeLine", map[string]any{"Grade": d.Grade}))
		p.raw(`</p><ol class="questions">`)
		for _, q := range d.Questions {
			given, answered := d.Answers[q.ID]
			class := "incorrect"
			if answered && given == q.CorrectAnswer {
				class = "correct"
			}
			p.raw(`<li`)
			p.attr("class", class)
			p.raw(`><p>`)
			p.text(q.QuestionText)
			p.raw(`</p><p class="given">`)
			p.text(appI18n.T(ctx, "YourAnswer") + ": ")
			if answered && given != "" {
				p.text(given)
			} else {
				p.text(appI18n.T(ctx, "NoAnswer"))
			}
			p.raw(`</p><p class="expected">`)
			p.text(appI18n.T(ctx, "CorrectAnswer") + ": " + q.CorrectAnswer)
			p.raw(`</p>`)
			if q.Explanation != "" {
				p.raw(`<p class="explanation">`)
				p.text(appI18n.T(ctx, "Explanation") + ": " + q.Explanation)
				p.raw(`</p>`)
			}
			p.raw(`</li>`)
		}
		p.raw(`</ol>`)
		return p.err
	}))
}
