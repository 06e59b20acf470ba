package translate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role and finish-reason mapping between the dialects.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
	roleModel     = "model"
)

// NativeModelPath builds the native generateContent path for a model,
// using the streaming variant when stream is set.
func NativeModelPath(apiVersion, model string, stream bool) string {
	op := "generateContent"
	if stream {
		op = "streamGenerateContent"
	}
	return fmt.Sprintf("/%s/models/%s:%s", apiVersion, model, op)
}

// Request converts a bearer chat completion request into a native
// generation request. System messages become the systemInstruction;
// assistant turns map to the native "model" role.
func Request(body []byte) (*GenerateRequest, *ChatRequest, error) {
	var chat ChatRequest
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, nil, fmt.Errorf("failed to parse chat request: %w", err)
	}
	if chat.Model == "" {
		return nil, nil, fmt.Errorf("chat request missing model")
	}
	if len(chat.Messages) == 0 {
		return nil, nil, fmt.Errorf("chat request has no messages")
	}

	native := &GenerateRequest{}
	var system []string
	for _, msg := range chat.Messages {
		switch msg.Role {
		case roleSystem:
			system = append(system, msg.Content)
		case roleAssistant:
			native.Contents = append(native.Contents, NativeContent{
				Role:  roleModel,
				Parts: []NativePart{{Text: msg.Content}},
			})
		default:
			native.Contents = append(native.Contents, NativeContent{
				Role:  roleUser,
				Parts: []NativePart{{Text: msg.Content}},
			})
		}
	}
	if len(system) > 0 {
		native.SystemInstruction = &NativeContent{
			Parts: []NativePart{{Text: strings.Join(system, "\n")}},
		}
	}

	if chat.Temperature != nil || chat.TopP != nil || chat.MaxTokens > 0 || len(chat.Stop) > 0 {
		native.GenerationConfig = &NativeGenCfg{
			Temperature:     chat.Temperature,
			TopP:            chat.TopP,
			MaxOutputTokens: chat.MaxTokens,
			StopSequences:   chat.Stop,
		}
	}

	return native, &chat, nil
}

// Response converts a buffered native generation response into a bearer
// chat completion response for the given model.
func Response(body []byte, model string) ([]byte, error) {
	var native GenerateResponse
	if err := json.Unmarshal(body, &native); err != nil {
		return nil, fmt.Errorf("failed to parse upstream response: %w", err)
	}

	chat := ChatResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
	}
	for i, cand := range native.Candidates {
		chat.Choices = append(chat.Choices, ChatChoice{
			Index: i,
			Message: ChatMessage{
				Role:    roleAssistant,
				Content: candidateText(cand),
			},
			FinishReason: finishReason(cand.FinishReason),
		})
	}
	if native.UsageMetadata != nil {
		chat.Usage = ChatUsage{
			PromptTokens:     native.UsageMetadata.PromptTokenCount,
			CompletionTokens: native.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      native.UsageMetadata.TotalTokenCount,
		}
	}

	out, err := json.Marshal(chat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat response: %w", err)
	}
	return out, nil
}

// Chunk converts one native streaming chunk into a bearer SSE chunk.
// The id and created values are shared across the whole stream; first
// marks the chunk that should carry the assistant role in its delta.
func Chunk(data []byte, id, model string, created int64, first bool) ([]byte, error) {
	var native GenerateResponse
	if err := json.Unmarshal(data, &native); err != nil {
		return nil, fmt.Errorf("failed to parse upstream chunk: %w", err)
	}

	chunk := ChatStreamChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
	}
	for i, cand := range native.Candidates {
		choice := ChatStreamChoice{
			Index: i,
			Delta: ChatDelta{Content: candidateText(cand)},
		}
		if first && i == 0 {
			choice.Delta.Role = roleAssistant
		}
		if cand.FinishReason != "" {
			fr := finishReason(cand.FinishReason)
			choice.FinishReason = &fr
		}
		chunk.Choices = append(chunk.Choices, choice)
	}

	out, err := json.Marshal(chunk)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chunk: %w", err)
	}
	return out, nil
}

// candidateText concatenates the text parts of a candidate.
func candidateText(cand NativeCandidate) string {
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

// finishReason maps native finish reasons onto bearer ones. Safety and
// recitation blocks surface as content_filter; anything unknown reports
// stop rather than leaking upstream vocabulary to bearer clients.
func finishReason(native string) string {
	switch native {
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return "content_filter"
	default:
		return "stop"
	}
}
