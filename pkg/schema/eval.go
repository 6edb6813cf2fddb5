package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
)

// ChapterEval is a structured judgment of a chapter along one axis.
// It is immutable once cached; a new evaluation overwrites it wholesale.
type ChapterEval struct {
	Score    int      `json:"score" jsonschema_description:"Score from 0 to 100"`
	Comments []string `json:"comments" jsonschema_description:"Bullet-pointed negative findings, in order of importance"`
}

// ParseChapterEval decodes an evaluation payload, rejecting anything that
// does not carry the expected shape.
func ParseChapterEval(raw []byte) (*ChapterEval, error) {
	var eval ChapterEval
	if err := json.Unmarshal(raw, &eval); err != nil {
		return nil, fmt.Errorf("parse chapter eval: %w", err)
	}
	if eval.Score < 0 || eval.Score > 100 {
		return nil, fmt.Errorf("parse chapter eval: score %d out of range", eval.Score)
	}
	return &eval, nil
}

func generateSchema[T any]() any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}

var ChapterEvalSchema = generateSchema[ChapterEval]()

// EvalResponseFormat constrains OpenAI-backed evaluators to the
// ChapterEval shape via structured outputs.
func EvalResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	p := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "chapter_eval",
		Description: openai.String("Score and negative-only comments for a manuscript chapter"),
		Schema:      ChapterEvalSchema,
		Strict:      openai.Bool(true),
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: p},
	}
}
