// Package main runs a demo WebSocket client for plan events. It subscribes
// to a fresh plan id, posts an order CSV under that id and prints every
// event until the server completes the stream.
//
//	go run ./scripts -orders testdata/orders.csv
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	ordersPath := flag.String("orders", "", "order CSV to plan")
	host := flag.String("host", "localhost:"+port, "API host:port")
	flag.Parse()
	if *ordersPath == "" {
		log.Fatal("-orders is required")
	}
	planID := uuid.NewString()

	u := url.URL{Scheme: "ws", Host: *host, Path: "/v1/plans/" + planID + "/events"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
			if m.Type == "complete" {
				return
			}
		}
	}()

	f, err := os.Open(*ordersPath)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	resp, err := http.Post(fmt.Sprintf("http://%s/v1/plans?planId=%s", *host, planID), "text/csv", f)
	if err != nil {
		log.Fatal(err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	log.Printf("POST /v1/plans -> %s (plan %s)", resp.Status, planID)

	select {
	case <-time.After(30 * time.Second):
		log.Print("timed out waiting for plan.completed")
	case <-done:
	}
}
