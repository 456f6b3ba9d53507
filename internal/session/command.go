package session

import (
	"encoding/json"
	"errors"
	"strings"
)

// Command verbs accepted from clients.
const (
	verbSubscribe   = "SUBSCRIBE"
	verbUnsubscribe = "UNSUBSCRIBE"
)

var errMalformed = errors.New("malformed client message")

// command is one parsed inbound instruction. The symbol is raw text, not
// yet validated against the universe.
type command struct {
	verb   string
	symbol string
}

// clientMessage is the structured inbound form:
// {"type":"SUBSCRIBE","stock":"GOOG"}. Stock is a pointer so an absent
// field is distinguishable from an empty one; absent fails the shape
// check while empty flows through to symbol validation.
type clientMessage struct {
	Type  string  `json:"type"`
	Stock *string `json:"stock"`
}

// parseCommand interprets one raw payload. Two encodings are accepted,
// both case-insensitive on the verb: the JSON {"type","stock"} object and
// a plain-text "SUBSCRIBE:<SYM>" / "UNSUBSCRIBE:<SYM>" line. Anything
// else is malformed.
func parseCommand(raw []byte) (command, error) {
	text := strings.TrimSpace(string(raw))

	if strings.HasPrefix(text, "{") {
		var msg clientMessage
		if err := json.Unmarshal([]byte(text), &msg); err != nil {
			return command{}, errMalformed
		}
		verb := strings.ToUpper(strings.TrimSpace(msg.Type))
		if (verb != verbSubscribe && verb != verbUnsubscribe) || msg.Stock == nil {
			return command{}, errMalformed
		}
		return command{verb: verb, symbol: *msg.Stock}, nil
	}

	if verbText, symbol, ok := strings.Cut(text, ":"); ok {
		verb := strings.ToUpper(strings.TrimSpace(verbText))
		if verb == verbSubscribe || verb == verbUnsubscribe {
			return command{verb: verb, symbol: symbol}, nil
		}
	}
	return command{}, errMalformed
}
