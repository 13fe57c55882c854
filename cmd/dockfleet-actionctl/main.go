// Command dockfleet-actionctl pushes a single action onto a running
// controller's action queue over HTTP, for exercising the agent protocol
// by hand (spec.md §6 POST /api/agent/action).
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8090", "controller base address")
	agentID := flag.String("agent", "", "target agent id (required)")
	kind := flag.String("kind", "restart_container", "action kind")
	payload := flag.String("payload", "{}", "JSON-encoded action payload")
	wait := flag.Bool("wait", false, "block until the action reaches a terminal state")
	timeout := flag.Duration("timeout", 30*time.Second, "wait timeout")
	flag.Parse()

	if *agentID == "" {
		log.Fatal("-agent is required")
	}

	var rawPayload map[string]any
	if err := json.Unmarshal([]byte(*payload), &rawPayload); err != nil {
		log.Fatalf("invalid -payload JSON: %v", err)
	}

	body, err := json.Marshal(map[string]any{
		"agent_id":        *agentID,
		"kind":            *kind,
		"payload":         rawPayload,
		"wait":            *wait,
		"timeout_seconds": int(timeout.Seconds()),
	})
	if err != nil {
		log.Fatalf("encode request: %v", err)
	}

	resp, err := http.Post(*addr+"/api/agent/action", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("read response: %v", err)
	}

	fmt.Printf("HTTP %d\n%s\n", resp.StatusCode, respBody)
}
