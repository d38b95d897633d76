package domain

import "fmt"

// Turn is one message unit in a conversation.
type Turn struct {
	Speaker Speaker `json:"role"`
	Text    string  `json:"text"`
}

// UserTurn builds a turn spoken by the user.
func UserTurn(text string) Turn {
	return Turn{Speaker: SpeakerUser, Text: text}
}

// AssistantTurn builds a turn spoken by the AI service.
func AssistantTurn(text string) Turn {
	return Turn{Speaker: SpeakerAssistant, Text: text}
}

// Conversation is the ordered sequence of turns between one caller and the AI.
// A persisted conversation alternates user/assistant starting with user and
// always ends with an assistant turn.
type Conversation []Turn

// Append returns a new conversation with turns added at the end.
// The receiver's backing array is never shared with the result.
func (c Conversation) Append(turns ...Turn) Conversation {
	out := make(Conversation, 0, len(c)+len(turns))
	out = append(out, c...)
	return append(out, turns...)
}

// Clone returns a copy that does not alias c.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// Last returns the final turn, if any.
func (c Conversation) Last() (Turn, bool) {
	if len(c) == 0 {
		return Turn{}, false
	}
	return c[len(c)-1], true
}

// Validate checks the alternation invariant of a stored conversation.
func (c Conversation) Validate() error {
	for i, t := range c {
		if !t.Speaker.Valid() {
			return fmt.Errorf("%w: turn %d has unknown speaker %q", ErrSessionCorrupted, i, t.Speaker)
		}
		want := SpeakerUser
		if i%2 == 1 {
			want = SpeakerAssistant
		}
		if t.Speaker != want {
			return fmt.Errorf("%w: turn %d is %s, expected %s", ErrSessionCorrupted, i, t.Speaker, want)
		}
	}
	if len(c)%2 != 0 {
		return fmt.Errorf("%w: trailing unanswered user turn", ErrSessionCorrupted)
	}
	return nil
}

// Trim drops the oldest user/assistant pairs until at most maxTurns remain.
// maxTurns <= 0 means unbounded. Only whole pairs are removed, so an odd
// maxTurns rounds down and the latest pair is always kept.
func (c Conversation) Trim(maxTurns int) Conversation {
	if maxTurns <= 0 {
		return c
	}
	maxTurns -= maxTurns % 2
	if maxTurns < 2 {
		maxTurns = 2
	}
	if len(c) <= maxTurns {
		return c
	}
	return c[len(c)-maxTurns:].Clone()
}
