package live

import "github.com/HerbHall/skillpath/internal/tools"

// ClientMessage is a message received from the assistant. Only tool calls
// are acted on; other message kinds are ignored.
type ClientMessage struct {
	ToolCall *ToolCall `json:"toolCall,omitempty"`
}

// ToolCall carries a batch of function calls.
type ToolCall struct {
	FunctionCalls []tools.Call `json:"functionCalls"`
}

// ServerMessage is a message sent to the assistant. Exactly one field is set.
type ServerMessage struct {
	Setup        *Setup        `json:"setup,omitempty"`
	ToolResponse *ToolResponse `json:"toolResponse,omitempty"`
	OpenResource *OpenResource `json:"openResource,omitempty"`
}

// Setup is sent once when the session starts.
type Setup struct {
	SessionID string              `json:"sessionId"`
	Tools     []tools.Declaration `json:"tools"`
}

// ToolResponse answers a ToolCall, one response per call.
type ToolResponse struct {
	FunctionResponses []tools.Response `json:"functionResponses"`
}

// OpenResource asks the client to open an accepted launch.
type OpenResource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
