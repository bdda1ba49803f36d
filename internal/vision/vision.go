// Package vision is the slow path: when the accessibility tree or direct
// text extraction cannot serve a command, the current screen goes to a
// multimodal model which either describes what it sees or returns a plan of
// input actions to execute.
package vision

import (
	"context"
	"strings"

	"aura/internal/types"
)

// Step is one executable action in a vision-produced plan.
type Step struct {
	// Action is the verb: click, double_click, right_click, type, scroll, key.
	Action string `json:"action"`

	// Target describes the on-screen element the step aims at.
	Target string `json:"target"`

	// X, Y are screen coordinates for pointer actions.
	X int `json:"x"`
	Y int `json:"y"`

	// Text is the payload for type actions.
	Text string `json:"text"`

	// Direction and Amount parameterize scroll steps.
	Direction string `json:"direction"`
	Amount    int    `json:"amount"`
}

// Point returns the step's pointer target.
func (s Step) Point() types.Point { return types.Point{X: s.X, Y: s.Y} }

// Analysis is the model's answer to a screen prompt: a prose description,
// an action plan, or both.
type Analysis struct {
	Description string `json:"description"`
	Plan        []Step `json:"plan"`
}

// HasPlan reports whether the analysis contains executable steps.
func (a Analysis) HasPlan() bool { return len(a.Plan) > 0 }

// Client is the vision collaborator: capture the screen, send it with the
// prompt, and return the parsed analysis.
type Client interface {
	AnalyzeScreen(ctx context.Context, prompt string) (Analysis, error)
}

// ActionPrompt builds the screen prompt for executing a GUI command
// visually.
func ActionPrompt(command string) string {
	var sb strings.Builder
	sb.WriteString("You see a screenshot of the user's screen. The user asked: \"")
	sb.WriteString(command)
	sb.WriteString("\"\n\n")
	sb.WriteString(`Reply with ONE JSON object:
{"description": "<one sentence about the relevant screen region>", "plan": [{"action": "click|double_click|right_click|type|scroll|key", "target": "<element description>", "x": <int>, "y": <int>, "text": "<for type>", "direction": "<for scroll>", "amount": <for scroll>}]}

Coordinates are pixels from the top-left of the screenshot. Keep the plan
as short as possible; one step for a simple click.`)
	return sb.String()
}

// DescribePrompt builds the screen prompt for answering a question about
// visible content.
func DescribePrompt(question string) string {
	var sb strings.Builder
	sb.WriteString("You see a screenshot of the user's screen. Answer this question about it: \"")
	sb.WriteString(question)
	sb.WriteString("\"\n\n")
	sb.WriteString(`Reply with ONE JSON object:
{"description": "<a spoken-friendly answer, at most 150 words>"}`)
	return sb.String()
}
