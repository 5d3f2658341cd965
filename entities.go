package mcp

import "encoding/json"

// Annotations carries optional display/audience hints on a Resource
// (spec.md §3).
type Annotations struct {
	Audience []string `json:"audience,omitempty"`
	Priority float64  `json:"priority,omitempty"`
}

// Resource describes one piece of context a server can serve (spec.md §3).
type Resource struct {
	URI         string       `json:"uri"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	MimeType    string       `json:"mimeType,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
	Size        *int64       `json:"size,omitempty"`
}

// ResourceTemplate describes a URI template a client can expand to
// address a family of resources (spec.md §3).
type ResourceTemplate struct {
	URITemplate string       `json:"uriTemplate"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	MimeType    string       `json:"mimeType,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
}

// TextResourceContents is the contents of a resource carried as text
// (spec.md §3).
type TextResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

// BlobResourceContents is the contents of a resource carried as
// base64-encoded binary data (spec.md §3).
type BlobResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Blob     string `json:"blob"`
}

// ResourceContents is the union of the two resource content encodings. At
// most one of Text or Blob is set, mirroring the wire representation where
// exactly one of "text"/"blob" is present on the object.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// IsBlob reports whether these contents carry binary (blob) data rather
// than text.
func (c ResourceContents) IsBlob() bool { return c.Blob != "" }

// CursorParams is the shared cursor-paginated params shape used by
// resources/list, prompts/list, and tools/list (spec.md §6).
type CursorParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListResourcesParams is the params of resources/list (spec.md §6).
type ListResourcesParams = CursorParams

// ListResourcesResult is the result of resources/list (spec.md §6, §8
// scenario 2).
type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor *string    `json:"nextCursor,omitempty"`
}

// ReadResourceParams is the params of resources/read (spec.md §6).
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ReadResourceResult is the result of resources/read (spec.md §6).
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// ListResourceTemplatesResult is the result of resources/templates/list
// (spec.md §6).
type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
	NextCursor        *string            `json:"nextCursor,omitempty"`
}

// SubscribeParams is the params of resources/subscribe and
// resources/unsubscribe (spec.md §6).
type SubscribeParams struct {
	URI string `json:"uri"`
}

// PromptArgument describes one named argument a prompt accepts (spec.md §3).
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Prompt describes one reusable prompt template a server offers (spec.md §3).
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// ListPromptsResult is the result of prompts/list (spec.md §6).
type ListPromptsResult struct {
	Prompts    []Prompt `json:"prompts"`
	NextCursor *string  `json:"nextCursor,omitempty"`
}

// GetPromptParams is the params of prompts/get (spec.md §6).
type GetPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// PromptMessage is one turn in a GetPrompt result (spec.md §3).
type PromptMessage struct {
	Role    string        `json:"role"`
	Content []ContentBlock `json:"content"`
}

// GetPromptResult is the result of prompts/get (spec.md §3, §6).
type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// ContentBlock is one unit of content in a tool result or prompt message
// (spec.md §3). Type selects which of Text/Data/MimeType/Resource apply;
// it is one of "text", "image", or "resource".
type ContentBlock struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	Data     string            `json:"data,omitempty"`
	MimeType string            `json:"mimeType,omitempty"`
	Resource *ResourceContents `json:"resource,omitempty"`
}

// Tool describes one callable operation a server offers (spec.md §3).
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the result of tools/list (spec.md §6).
type ListToolsResult struct {
	Tools      []Tool  `json:"tools"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// CallToolParams is the params of tools/call (spec.md §6).
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult is the result of tools/call (spec.md §3, §6).
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// LoggingLevel is one of the eight RFC 5424 severities MCP carries in
// logging/setLevel and notifications/message (spec.md §3).
type LoggingLevel string

const (
	LogLevelDebug     LoggingLevel = "debug"
	LogLevelInfo      LoggingLevel = "info"
	LogLevelNotice    LoggingLevel = "notice"
	LogLevelWarning   LoggingLevel = "warning"
	LogLevelError     LoggingLevel = "error"
	LogLevelCritical  LoggingLevel = "critical"
	LogLevelAlert     LoggingLevel = "alert"
	LogLevelEmergency LoggingLevel = "emergency"
)

// logLevelRank orders severities from least to most severe, for
// logging/setLevel filtering on the server side.
var logLevelRank = map[LoggingLevel]int{
	LogLevelDebug:     0,
	LogLevelInfo:      1,
	LogLevelNotice:    2,
	LogLevelWarning:   3,
	LogLevelError:     4,
	LogLevelCritical:  5,
	LogLevelAlert:     6,
	LogLevelEmergency: 7,
}

// ShouldLog reports whether a message at level meets or exceeds the
// configured threshold.
func ShouldLog(level, threshold LoggingLevel) bool {
	return logLevelRank[level] >= logLevelRank[threshold]
}

// SetLevelParams is the params of logging/setLevel (spec.md §6).
type SetLevelParams struct {
	Level LoggingLevel `json:"level"`
}

// LogMessageParams is the params of notifications/message (spec.md §3, §6).
type LogMessageParams struct {
	Level  LoggingLevel `json:"level"`
	Logger string       `json:"logger,omitempty"`
	Data   any          `json:"data"`
}

// SamplingRole is the role attached to one turn of a sampling
// conversation (spec.md §3).
type SamplingRole string

const (
	SamplingRoleUser      SamplingRole = "user"
	SamplingRoleAssistant SamplingRole = "assistant"
)

// SamplingMessage is one modeled conversation turn in a sampling request
// (spec.md §3).
type SamplingMessage struct {
	Role    SamplingRole `json:"role"`
	Content ContentBlock `json:"content"`
}

// ModelPreferences hints at model selection for a sampling request
// (spec.md §6).
type ModelPreferences struct {
	Hints                []ModelHint `json:"hints,omitempty"`
	CostPriority         float64     `json:"costPriority,omitempty"`
	SpeedPriority        float64     `json:"speedPriority,omitempty"`
	IntelligencePriority float64     `json:"intelligencePriority,omitempty"`
}

// ModelHint names a preferred model family for sampling (spec.md §6).
type ModelHint struct {
	Name string `json:"name,omitempty"`
}

// CreateMessageParams is the params of a server-originated
// sampling/createMessage request (spec.md §6).
type CreateMessageParams struct {
	Messages        []SamplingMessage `json:"messages"`
	ModelPreferences *ModelPreferences `json:"modelPreferences,omitempty"`
	SystemPrompt    string            `json:"systemPrompt,omitempty"`
	MaxTokens       int               `json:"maxTokens"`
}

// CreateMessageResult is the result a client returns for
// sampling/createMessage (spec.md §6).
type CreateMessageResult struct {
	Role       SamplingRole `json:"role"`
	Content    ContentBlock `json:"content"`
	Model      string       `json:"model"`
	StopReason string       `json:"stopReason,omitempty"`
}

// Root is a URI-named boundary the client exposes to scope a server's
// resource operations (spec.md §3).
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// ListRootsResult is the result a client returns for a server-originated
// roots/list request (spec.md §6).
type ListRootsResult struct {
	Roots []Root `json:"roots"`
}

// CompleteArgument names which argument is being completed, and its
// partial value, for completion/complete (spec.md §6).
type CompleteArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CompleteReference names the prompt or resource template the completion
// request applies to (spec.md §6).
type CompleteReference struct {
	Type string `json:"type"` // "ref/prompt" or "ref/resource"
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// CompleteParams is the params of completion/complete (spec.md §6).
type CompleteParams struct {
	Ref      CompleteReference `json:"ref"`
	Argument CompleteArgument  `json:"argument"`
}

// CompletionValues is the result payload of completion/complete
// (spec.md §6).
type CompletionValues struct {
	Values  []string `json:"values"`
	Total   *int     `json:"total,omitempty"`
	HasMore bool     `json:"hasMore,omitempty"`
}

// CompleteResult is the result of completion/complete (spec.md §6).
type CompleteResult struct {
	Completion CompletionValues `json:"completion"`
}

// ProgressToken correlates a request with its progress notifications
// (spec.md §5 ordering guarantees, §6).
type ProgressToken = ID

// ProgressParams is the params of notifications/progress (spec.md §6).
type ProgressParams struct {
	ProgressToken ProgressToken `json:"progressToken"`
	Progress      float64       `json:"progress"`
	Total         float64       `json:"total,omitempty"`
	Message       string        `json:"message,omitempty"`
}

// CancelledParams is the params of notifications/cancelled (spec.md §5,
// §8 scenario 4).
type CancelledParams struct {
	RequestID ID     `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

// ResourceUpdatedParams is the params of
// notifications/resources/updated (spec.md §6).
type ResourceUpdatedParams struct {
	URI string `json:"uri"`
}

// PingParams is the (empty) params of ping (spec.md §6).
type PingParams struct{}
