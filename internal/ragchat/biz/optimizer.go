package biz

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragchat/pkg/llm"
)

// MaxQueryRunes caps the length of an optimized query.
const MaxQueryRunes = 256

const optimizePrompt = `You are an assistant that extracts the best search terms from a message. Analyze the message below and extract the keywords and phrases that work best as a vector database query. Your output is used directly as the query.

<message>
%MESSAGE%
</message>

Instructions:
1. Focus on technical terms, proper nouns, numbers and measurements, domain-specific jargon and action verbs.
2. Do not add explanations, commentary, interpretations or a reworded version of the task.
3. If the message is unclear or vague, return it as is.

Respond with ONE line containing only the optimized query terms.`

var (
	messageTagRe = regexp.MustCompile(`(?i)</?message\s*>`)
	queryLabelRe = regexp.MustCompile(`(?i)^(optimi[sz]ed\s+)?(search\s+)?(query|queries|keywords?|search\s+terms|terms)\s*:\s*`)
	quoteCutset  = "\"'`“”‘’"
)

// 清洗后包含以下片段视为模型复述了指令
var echoedInstructionMarkers = []string{
	"optimized query terms",
	"vector database query",
	"extracts the best search terms",
	"instructions:",
}

// QueryOptimizer rewrites a user message into a compact keyword query.
type QueryOptimizer struct {
	chat    llm.ChatProvider
	timeout time.Duration
}

// NewQueryOptimizer creates a QueryOptimizer.
func NewQueryOptimizer(chat llm.ChatProvider, timeout time.Duration) *QueryOptimizer {
	return &QueryOptimizer{
		chat:    chat,
		timeout: timeout,
	}
}

// BuildOptimizeMessages returns history followed by the extraction request.
func BuildOptimizeMessages(message string, history []llm.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	return append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: strings.Replace(optimizePrompt, "%MESSAGE%", message, 1),
	})
}

// Optimize returns the keyword query for message. The model error is
// returned unchanged; the caller classifies it.
func (o *QueryOptimizer) Optimize(ctx context.Context, message string, history []llm.Message) (string, error) {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	raw, err := o.chat.Chat(ctx, BuildOptimizeMessages(message, history))
	if err != nil {
		return "", err
	}

	query := SanitizeQuery(raw, message)
	logger.Debugw("query optimized", "message", message, "query", query)
	return query, nil
}

// SanitizeQuery extracts a usable single-line query from untrusted model
// output and falls back to fallback when nothing usable remains.
func SanitizeQuery(raw, fallback string) string {
	raw = messageTagRe.ReplaceAllString(raw, "")

	line := ""
	for _, l := range strings.Split(raw, "\n") {
		if strings.TrimSpace(stripControl(l)) != "" {
			line = l
			break
		}
	}

	q := strings.TrimSpace(stripControl(line))
	for {
		prev := q
		q = strings.TrimSpace(strings.Trim(q, quoteCutset))
		q = strings.TrimSpace(queryLabelRe.ReplaceAllString(q, ""))
		if q == prev {
			break
		}
	}

	if r := []rune(q); len(r) > MaxQueryRunes {
		q = strings.TrimSpace(string(r[:MaxQueryRunes]))
	}

	if !hasWordRune(q) || echoesInstruction(q) {
		return fallback
	}
	return q
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			if r == '\t' {
				return ' '
			}
			return -1
		}
		return r
	}, s)
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func echoesInstruction(s string) bool {
	lower := strings.ToLower(s)
	for _, m := range echoedInstructionMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
