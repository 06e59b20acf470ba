package translate

// Bearer (OpenAI-compatible) wire types.

// ChatRequest is a bearer-dialect chat completion request.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatMessage is one conversation turn in bearer shape.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is a bearer-dialect chat completion response.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
}

// ChatChoice is one completion alternative.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatUsage reports token counts in bearer shape.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatStreamChunk is one bearer-dialect SSE chunk.
type ChatStreamChunk struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []ChatStreamChoice `json:"choices"`
}

// ChatStreamChoice carries the incremental delta.
type ChatStreamChoice struct {
	Index        int       `json:"index"`
	Delta        ChatDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason,omitempty"`
}

// ChatDelta is the incremental message content.
type ChatDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Native wire types.

// GenerateRequest is the native content generation request.
type GenerateRequest struct {
	Contents          []NativeContent `json:"contents"`
	SystemInstruction *NativeContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  *NativeGenCfg   `json:"generationConfig,omitempty"`
}

// NativeContent is a role-tagged sequence of parts.
type NativeContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []NativePart `json:"parts"`
}

// NativePart is one piece of content; only text is mapped.
type NativePart struct {
	Text string `json:"text,omitempty"`
}

// NativeGenCfg carries sampling parameters in native shape.
type NativeGenCfg struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// GenerateResponse is the native generation response, full or chunked.
type GenerateResponse struct {
	Candidates    []NativeCandidate `json:"candidates"`
	UsageMetadata *NativeUsage      `json:"usageMetadata,omitempty"`
}

// NativeCandidate is one generated alternative.
type NativeCandidate struct {
	Content      NativeContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index,omitempty"`
}

// NativeUsage reports token counts in native shape.
type NativeUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}
