package agent

import (
	"context"

	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/llm"
)

// ChatAgent answers a message within a session, replaying its history.
type ChatAgent interface {
	Chat(ctx context.Context, sessionID, message string) (string, error)
}

// Exercises is the set of holiday assignments served by the CLI and API.
type Exercises interface {
	ChatAgent
	GenerateHW01(ctx context.Context, question string) (string, error)
	GenerateHW02(ctx context.Context, question string) (string, error)
	GenerateHW03(ctx context.Context, question2, question3 string) (string, error)
	GenerateHW04(ctx context.Context, question string, image llm.Image) (string, error)
	Demo(ctx context.Context, question string) (string, error)
	ClearSession(sessionID string) bool
}
