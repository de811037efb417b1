package models

// ChatRequest is the payload accepted by POST /api/chat. Context carries the
// profile returned by the previous turn, if the caller kept one.
type ChatRequest struct {
	Message        string           `json:"message" binding:"required"`
	Context        *BuildingProfile `json:"context,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
}

// ChatResponse is the answer envelope returned to the caller.
type ChatResponse struct {
	Answer         string           `json:"answer"`
	Applies        Applicability    `json:"applies"`
	Reason         string           `json:"reason"`
	Sources        []Source         `json:"sources"`
	Context        *BuildingProfile `json:"context"`
	ConversationID string           `json:"conversation_id,omitempty"`
}
