package utils

import (
	"github.com/pkoukk/tiktoken-go"
)

// NumTokens reports the tiktoken count for text. It is diagnostic only;
// budget decisions use whitespace word counts.
func NumTokens(text string) (int, error) {
	tkm, err := tiktoken.EncodingForModel("gpt-4-0613")
	if err != nil {
		return 0, err
	}

	return len(tkm.Encode(text, nil, nil)), nil
}
