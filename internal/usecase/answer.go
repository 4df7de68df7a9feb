package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"docqa/internal/port"
)

// DefaultInstructions open every answer prompt.
const DefaultInstructions = "You are an assistant. Use the provided context to answer the question. " +
	"If the answer is not contained in the context, say you don't know. " +
	"Cite sources in square brackets like [doc_id:page]. Be concise."

// NoAnswer replaces an empty completion.
const NoAnswer = "No answer generated."

//go:embed templates/answer.tmpl
var answerTemplate string

var promptTmpl = template.Must(
	template.New("answer").Option("missingkey=error").Funcs(sprig.TxtFuncMap()).Parse(answerTemplate),
)

type promptData struct {
	Instructions string
	Context      string
	Question     string
}

// AnswerUseCase asks the LLM to answer from the assembled context.
type AnswerUseCase struct {
	llm          port.LLM
	instructions string
}

func NewAnswerUseCase(llm port.LLM) *AnswerUseCase {
	return &AnswerUseCase{llm: llm, instructions: DefaultInstructions}
}

// BuildPrompt renders the fixed prompt. Output depends only on its inputs.
func (u *AnswerUseCase) BuildPrompt(question, contextText string) (string, error) {
	var buf bytes.Buffer
	err := promptTmpl.Execute(&buf, promptData{
		Instructions: u.instructions,
		Context:      contextText,
		Question:     question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}

// Answer makes a single LLM call. An empty model uses the LLM default.
func (u *AnswerUseCase) Answer(ctx context.Context, question, contextText, model string) (string, error) {
	prompt, err := u.BuildPrompt(question, contextText)
	if err != nil {
		return "", err
	}

	out, err := u.llm.Generate(ctx, prompt, model)
	if err != nil {
		return "", err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return NoAnswer, nil
	}
	return out, nil
}
