package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

// SystemPrompt is sent with every generation request.
const SystemPrompt = "You are an experienced instructor who writes clear, unambiguous multiple choice exam questions. You answer with JSON only."

// MaxTopicRunes caps the topic length placed into a prompt.
const MaxTopicRunes = 200

//go:embed generate.txt
var files embed.FS

var tagRegex = regexp.MustCompile(`<[^>]*>`)

var (
	loadOnce    sync.Once
	loadErr     error
	generateTpl *template.Template
)

// GenerateData holds template data for question generation prompts.
type GenerateData struct {
	Topic      string
	Difficulty string
	Count      int
}

// Load parses the embedded prompt templates. It is safe to call more than once.
func Load() error {
	loadOnce.Do(func() {
		content, err := files.ReadFile("generate.txt")
		if err != nil {
			loadErr = errors.New("failed to read prompt file generate.txt: " + err.Error())
			return
		}
		generateTpl, err = template.New("generate").Parse(string(content))
		if err != nil {
			loadErr = errors.New("failed to parse prompt template generate.txt: " + err.Error())
		}
	})
	return loadErr
}

// BuildGeneratePrompt renders the question generation prompt.
func BuildGeneratePrompt(topic, difficulty string, count int) (string, error) {
	if err := Load(); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	data := GenerateData{
		Topic:      SanitizeTopic(topic),
		Difficulty: strings.ToLower(strings.TrimSpace(difficulty)),
		Count:      count,
	}
	var buf bytes.Buffer
	if err := generateTpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SanitizeTopic strips markup and newlines from a user-supplied topic and truncates it.
func SanitizeTopic(topic string) string {
	topic = tagRegex.ReplaceAllString(topic, "")
	topic = strings.Join(strings.Fields(topic), " ")
	if utf8.RuneCountInString(topic) > MaxTopicRunes {
		topic = string([]rune(topic)[:MaxTopicRunes])
	}
	return topic
}
