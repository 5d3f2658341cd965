package mcp

// Method name constants for every JSON-RPC method MCP defines
// (spec.md §6).
const (
	MethodInitialize = "initialize"

	MethodResourcesList          = "resources/list"
	MethodResourcesRead          = "resources/read"
	MethodResourcesSubscribe     = "resources/subscribe"
	MethodResourcesUnsubscribe   = "resources/unsubscribe"
	MethodResourcesTemplatesList = "resources/templates/list"

	MethodPromptsList = "prompts/list"
	MethodPromptsGet  = "prompts/get"

	MethodToolsList = "tools/list"
	MethodToolsCall = "tools/call"

	MethodLoggingSetLevel = "logging/setLevel"

	MethodCompletionComplete = "completion/complete"

	MethodPing = "ping"

	MethodSamplingCreateMessage = "sampling/createMessage"
	MethodRootsList             = "roots/list"
)

// Notification method names (spec.md §6). These are sent as
// Notification envelopes, never answered.
const (
	NotificationInitialized = "notifications/initialized"

	NotificationResourcesListChanged = "notifications/resources/listChanged"
	NotificationResourcesUpdated     = "notifications/resources/updated"
	NotificationPromptsListChanged   = "notifications/prompts/listChanged"
	NotificationToolsListChanged     = "notifications/tools/listChanged"
	NotificationLoggingMessage       = "notifications/message"
	NotificationProgress             = "notifications/progress"

	NotificationRootsListChanged = "notifications/roots/listChanged"
	NotificationCancelled        = "notifications/cancelled"
)
