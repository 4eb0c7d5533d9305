package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

// Interactive smoke test for the chat pipeline. Needs a running server,
// a reachable database and valid tokens (signed with JWT_SECRET from .env).
const (
	baseURL    = "http://localhost:3000/api"
	userToken  = ""
	adminToken = ""
)

// Pretty print JSON helper
func prettyPrint(body []byte) {
	var v map[string]interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		fmt.Println(string(body))
		return
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(string(b))
}

// Request helper
func sendRequest(method, url, token string, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, err
}

func main() {
	color.Cyan("🚀 Starting Document Chat API Walkthrough\n")

	// 1. Admin seeds a document, the ingest consumer embeds it in the background
	color.Yellow("\n[ADMIN] 1. Create Document")
	docReq := map[string]interface{}{
		"title":   "Launch Plan",
		"content": "The product launch happens in May. Phase one is discovery, phase two is execution.",
		"source":  "simulation",
	}
	resp, body, err := sendRequest("POST", "/document/v1", adminToken, docReq)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	prettyPrint(body)

	// Give the consumer a moment to embed the chunks
	time.Sleep(3 * time.Second)

	// 2. User asks a question against the corpus
	color.Yellow("\n[USER] 2. Ask Question")
	start := time.Now()
	resp, body, err = sendRequest("POST", "/chat/v1/message", userToken, map[string]string{
		"message": "when is the launch?",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s (%v)", resp.Status, time.Since(start))
	prettyPrint(body)

	// 3. Anaphoric follow-up, diagnostics should show used_history=true
	color.Yellow("\n[USER] 3. Follow-up Question")
	resp, body, err = sendRequest("POST", "/chat/v1/message", userToken, map[string]string{
		"message": "what about that one? tell me more",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	prettyPrint(body)

	// 4. History shows both exchanges in order
	color.Yellow("\n[USER] 4. Chat History")
	resp, body, err = sendRequest("GET", "/chat/v1/history", userToken, nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	prettyPrint(body)

	// 5. Admin checks live session stats
	color.Yellow("\n[ADMIN] 5. Session Stats")
	resp, body, err = sendRequest("GET", "/admin/v1/sessions/stats", adminToken, nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	prettyPrint(body)

	// 6. User resets their conversation
	color.Yellow("\n[USER] 6. Clear History")
	resp, body, err = sendRequest("DELETE", "/chat/v1/history", userToken, nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	prettyPrint(body)

	color.Cyan("\n✅ Walkthrough complete")
}
