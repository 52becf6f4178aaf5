package realtime

import "encoding/json"

// Outbound event tags.
const (
	TypeSessionUpdate          = "session.update"
	TypeResponseCreate         = "response.create"
	TypeConversationItemCreate = "conversation.item.create"
)

const TranscriptionModel = "whisper-1"

type SessionUpdateFrame struct {
	Type    string            `json:"type"`
	Session SessionUpdateBody `json:"session"`
}

type SessionUpdateBody struct {
	Modalities              []string                `json:"modalities"`
	Instructions            string                  `json:"instructions,omitempty"`
	InputAudioTranscription InputAudioTranscription `json:"input_audio_transcription"`
}

type InputAudioTranscription struct {
	Model string `json:"model"`
}

type ResponseCreateFrame struct {
	Type     string          `json:"type"`
	Response *ResponseParams `json:"response,omitempty"`
}

// ResponseParams.Input is never omitted: an empty list asks the model to
// respond without any conversation input.
type ResponseParams struct {
	Input        []json.RawMessage `json:"input"`
	Instructions string            `json:"instructions,omitempty"`
}

type ConversationItemFrame struct {
	Type string           `json:"type"`
	Item ConversationItem `json:"item"`
}

type ConversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func sessionUpdateFrame(instructions string) SessionUpdateFrame {
	return SessionUpdateFrame{
		Type: TypeSessionUpdate,
		Session: SessionUpdateBody{
			Modalities:              []string{"text", "audio"},
			Instructions:            instructions,
			InputAudioTranscription: InputAudioTranscription{Model: TranscriptionModel},
		},
	}
}

func greetingFrame(instructions string) ResponseCreateFrame {
	return ResponseCreateFrame{
		Type: TypeResponseCreate,
		Response: &ResponseParams{
			Input:        []json.RawMessage{},
			Instructions: instructions,
		},
	}
}

func userTextFrame(text string) ConversationItemFrame {
	return ConversationItemFrame{
		Type: TypeConversationItemCreate,
		Item: ConversationItem{
			Type:    "message",
			Role:    "user",
			Content: []ContentPart{{Type: "input_text", Text: text}},
		},
	}
}

func responseCreateFrame() ResponseCreateFrame {
	return ResponseCreateFrame{Type: TypeResponseCreate}
}
