package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
)

func TestTailTrimmer(t *testing.T) {
	// 40 characters each, roughly 10 tokens.
	msg := func(role string) domain.Message {
		return domain.Message{Role: role, Content: strings.Repeat("x", 40)}
	}
	history := []domain.Message{
		msg(domain.RoleUser), msg(domain.RoleAssistant), msg(domain.RoleUser),
	}

	tests := []struct {
		name   string
		budget int
		want   int
	}{
		{"zero budget keeps all", 0, 3},
		{"fits everything", 100, 3},
		{"keeps newest two", 25, 2},
		{"keeps only newest", 15, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TailTrimmer{}.Trim(history, tt.budget)
			if len(got) != tt.want {
				t.Fatalf("kept %d messages, want %d", len(got), tt.want)
			}
			if tt.want > 0 && got[len(got)-1].Role != history[len(history)-1].Role {
				t.Error("trimming must keep the newest messages")
			}
		})
	}
}

func TestHeuristicEvaluator(t *testing.T) {
	eval := HeuristicEvaluator{}
	input := domain.RoundInput{Prompt: "explain consensus algorithms"}
	ctx := context.Background()

	empty, _ := eval.Score(ctx, "", input)
	if empty != 0 {
		t.Errorf("empty answer should score 0, got %v", empty)
	}

	short, _ := eval.Score(ctx, "consensus", input)
	long, _ := eval.Score(ctx, strings.Repeat("consensus algorithms work by voting ", 50), input)
	if long <= short {
		t.Errorf("substantial answer should outscore a stub: %v <= %v", long, short)
	}

	offTopic, _ := eval.Score(ctx, strings.Repeat("cooking recipes and kitchen tips ", 50), input)
	if long <= offTopic {
		t.Errorf("on-topic answer should outscore off-topic: %v <= %v", long, offTopic)
	}

	if long < 0 || long > 1 {
		t.Errorf("score out of range: %v", long)
	}
}
