package generator

import (
	"context"
	"strings"
)

// ExampleQuestions are offered to users of an interactive session.
var ExampleQuestions = []string{
	"What are my top 5 largest transactions in the last month?",
	"Show me my spending patterns for UPI payments vs bill payments",
	"Analyze my monthly spending trend and highlight any unusual patterns",
	"What are my most frequent transaction types and their total values?",
	"Compare my recent spending with my historical average",
}

// AskFunc answers question given the earlier questions of the conversation.
type AskFunc func(ctx context.Context, question string, previous []string) (string, error)

// Session remembers the questions of one conversation. It is not safe for
// concurrent use.
type Session struct {
	ask   AskFunc
	asked []string
}

func NewSession(ask AskFunc) *Session {
	return &Session{ask: ask}
}

// Ask answers question with the last HistorySize questions as context and
// then records it.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	answer, err := s.ask(ctx, question, s.Recent())
	s.asked = append(s.asked, question)
	return answer, err
}

// Recent returns up to HistorySize of the latest questions, oldest first.
func (s *Session) Recent() []string {
	start := max(0, len(s.asked)-HistorySize)
	return append([]string(nil), s.asked[start:]...)
}

// Command is what a line typed into an interactive session asks for.
type Command int

const (
	CommandAsk Command = iota
	CommandSkip
	CommandExamples
	CommandQuit
)

// ParseCommand recognises the control words of an interactive session.
func ParseCommand(line string) Command {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return CommandSkip
	case "exit", "quit":
		return CommandQuit
	case "examples":
		return CommandExamples
	default:
		return CommandAsk
	}
}
