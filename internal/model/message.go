package model

// MessageType discriminates outbound wire messages.
type MessageType string

const (
	MessagePriceUpdate  MessageType = "PRICE_UPDATE"
	MessageSubscribed   MessageType = "SUBSCRIBED"
	MessageUnsubscribed MessageType = "UNSUBSCRIBED"
	MessageError        MessageType = "ERROR"
)

// ServerMessage is the outbound wire envelope. Exactly one of the optional
// field groups is populated per type:
//
//	{"type":"PRICE_UPDATE","stock":"GOOG","price":123.45}
//	{"type":"SUBSCRIBED","stock":"GOOG"}
//	{"type":"UNSUBSCRIBED","stock":"GOOG"}
//	{"type":"ERROR","message":"Invalid message format"}
type ServerMessage struct {
	Type    MessageType `json:"type"`
	Stock   Symbol      `json:"stock,omitempty"`
	Price   Price       `json:"price,omitempty"`
	Message string      `json:"message,omitempty"`
}

// PriceUpdateMessage wraps one tick for delivery to a subscriber.
func PriceUpdateMessage(tick PriceTick) ServerMessage {
	return ServerMessage{Type: MessagePriceUpdate, Stock: tick.Symbol, Price: Price(tick.Price)}
}

// SubscribedMessage confirms a subscribe command.
func SubscribedMessage(symbol Symbol) ServerMessage {
	return ServerMessage{Type: MessageSubscribed, Stock: symbol}
}

// UnsubscribedMessage confirms an unsubscribe command.
func UnsubscribedMessage(symbol Symbol) ServerMessage {
	return ServerMessage{Type: MessageUnsubscribed, Stock: symbol}
}

// ErrorMessage reports a recoverable, connection-local failure. The
// connection stays open.
func ErrorMessage(text string) ServerMessage {
	return ServerMessage{Type: MessageError, Message: text}
}
