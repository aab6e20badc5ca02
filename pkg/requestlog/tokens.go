package requestlog

import "encoding/json"

// parseTokenUsage opportunistically extracts token counts from a buffered
// upstream response body, trying OpenAI's usage.{prompt,completion,total}_tokens
// and Gemini's usageMetadata.{promptTokenCount,candidatesTokenCount,totalTokenCount}
// shapes. Any failure (empty body, streamed response, unrecognized shape)
// yields zero counts rather than an error: token accounting is best-effort.
func parseTokenUsage(body []byte) (prompt, completion, total int) {
	if len(body) == 0 {
		return 0, 0, 0
	}

	var openAI struct {
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &openAI); err == nil && openAI.Usage.TotalTokens != 0 {
		return openAI.Usage.PromptTokens, openAI.Usage.CompletionTokens, openAI.Usage.TotalTokens
	}

	var gemini struct {
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
			TotalTokenCount      int `json:"totalTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal(body, &gemini); err == nil && gemini.UsageMetadata.TotalTokenCount != 0 {
		return gemini.UsageMetadata.PromptTokenCount, gemini.UsageMetadata.CandidatesTokenCount, gemini.UsageMetadata.TotalTokenCount
	}

	return 0, 0, 0
}
