// feedtest connects to a stockcastd WebSocket and streams price updates to console.
// Usage: go run ./cmd/feedtest --url ws://localhost:8080/ws --symbols GOOG,TSLA
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stockcast/stockcast/internal/model"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "WebSocket endpoint")
	symbols := flag.String("symbols", "GOOG", "comma-separated symbols to subscribe")
	raw := flag.Bool("raw", false, "print raw frames instead of formatted lines")
	unsubAfter := flag.Duration("unsubscribe-after", 0, "send UNSUBSCRIBE for every symbol after this duration (0 disables)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ws, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Error("dial failed", "url", *url, "error", err)
		os.Exit(1)
	}
	defer ws.Close()

	logger.Info("connected", "url", *url)

	var subs []string
	for _, sym := range strings.Split(*symbols, ",") {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		cmd := "SUBSCRIBE:" + sym
		if err := ws.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
			logger.Error("subscribe failed", "symbol", sym, "error", err)
			os.Exit(1)
		}
		subs = append(subs, sym)
	}

	// Optionally unsubscribe from everything after a while; the per-symbol
	// stream stops once its UNSUBSCRIBED confirmation arrives.
	if *unsubAfter > 0 {
		time.AfterFunc(*unsubAfter, func() {
			for _, sym := range subs {
				if err := ws.WriteMessage(websocket.TextMessage, []byte("UNSUBSCRIBE:"+sym)); err != nil {
					logger.Error("unsubscribe failed", "symbol", sym, "error", err)
					return
				}
			}
		})
	}

	// On Ctrl+C send a close frame and give the server a moment to reply;
	// the read loop exits on the close reply.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("closing")
		deadline := time.Now().Add(time.Second)
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		time.AfterFunc(2*time.Second, func() { ws.Close() })
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("connection closed")
				return
			}
			logger.Error("read failed", "error", err)
			os.Exit(1)
		}

		if *raw {
			fmt.Printf("%s\n", data)
			continue
		}
		printMessage(data)
	}
}

func printMessage(data []byte) {
	var msg model.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		fmt.Printf("[RAW] %s\n", data)
		return
	}

	switch msg.Type {
	case model.MessagePriceUpdate:
		fmt.Printf("[PRICE] %s %.2f\n", msg.Stock, float64(msg.Price))
	case model.MessageSubscribed:
		fmt.Printf("[SUBSCRIBED] %s\n", msg.Stock)
	case model.MessageUnsubscribed:
		fmt.Printf("[UNSUBSCRIBED] %s\n", msg.Stock)
	case model.MessageError:
		fmt.Printf("[ERROR] %s\n", msg.Message)
	default:
		fmt.Printf("[RAW] %s\n", data)
	}
}
