//go:build ignore
// +build ignore

// Package main provides a manual concurrency stress test for the circulation API.
//
// Usage:
//
//	go run ./scripts/concurrency_test.go <book_copy_id> <user1_id> [user2_id ...]
//
// Or use the convenience environment variables:
//
//	BOOK_COPY_ID=<uuid>  USER_IDS=<uuid1>,<uuid2>,...  go run ./scripts/concurrency_test.go
//
// What it does:
//  1. Fires N goroutines (one per user) all attempting to issue the same copy simultaneously.
//  2. Prints how many were issued vs. rejected with 409 Conflict.
//  3. Fails unless exactly one issue succeeded.
//
// Prerequisites:
//   - Server must be running with the copy AVAILABLE and the users present.
//   - ACTOR_ID must be a librarian or admin id; requests are sent with role LIBRARIAN.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultServerAddr = "http://localhost:8080"

type issueResult struct {
	UserID        string
	StatusCode    int
	TransactionID string
	Err           error
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}
	actorID := os.Getenv("ACTOR_ID")
	if actorID == "" {
		actorID = uuid.NewString()
	}

	copyID := os.Getenv("BOOK_COPY_ID")
	var userIDs []string
	if v := os.Getenv("USER_IDS"); v != "" {
		userIDs = strings.Split(v, ",")
	}

	args := os.Args[1:]
	if len(args) >= 1 {
		copyID = args[0]
	}
	if len(args) >= 2 {
		userIDs = args[1:]
	}

	if copyID == "" {
		log.Fatal().Msg("usage: BOOK_COPY_ID=<uuid> USER_IDS=<u1,u2,...> go run ./scripts/concurrency_test.go")
	}
	if len(userIDs) == 0 {
		log.Fatal().Msg("at least one user ID must be provided via USER_IDS env or positional args")
	}

	fmt.Printf("=== Circulation Concurrency Test ===\n")
	fmt.Printf("Server : %s\n", serverAddr)
	fmt.Printf("Copy   : %s\n", copyID)
	fmt.Printf("Users  : %d\n\n", len(userIDs))

	results := make([]issueResult, len(userIDs))
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i, uid := range userIDs {
		wg.Add(1)
		go func(idx int, userID string) {
			defer wg.Done()
			<-start
			results[idx] = attemptIssue(serverAddr, actorID, copyID, strings.TrimSpace(userID))
		}(i, uid)
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)
	wg.Wait()

	var issued, conflicts, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] user=%-38s err=%v\n", r.UserID, r.Err)
		case r.StatusCode == http.StatusCreated:
			issued++
			fmt.Printf("  [ISSU] user=%-38s txn=%s\n", r.UserID, r.TransactionID)
		case r.StatusCode == http.StatusConflict:
			conflicts++
			fmt.Printf("  [CONF] user=%-38s status=%d\n", r.UserID, r.StatusCode)
		default:
			failures++
			fmt.Printf("  [FAIL] user=%-38s status=%d unexpected response\n", r.UserID, r.StatusCode)
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Issued    : %d\n", issued)
	fmt.Printf("Conflicts : %d\n", conflicts)
	fmt.Printf("Failures  : %d\n", failures)
	fmt.Printf("Total     : %d\n\n", len(userIDs))

	if issued != 1 || failures > 0 {
		fmt.Printf("[FAIL] expected exactly one issue and no failures\n")
		os.Exit(1)
	}
	fmt.Println("[OK] exactly one open transaction for the copy")
}

func attemptIssue(serverAddr, actorID, copyID, userID string) issueResult {
	body, _ := json.Marshal(map[string]string{"user_id": userID, "book_copy_id": copyID})
	req, err := http.NewRequest(http.MethodPost, serverAddr+"/api/transactions/issue", bytes.NewReader(body))
	if err != nil {
		return issueResult{UserID: userID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", actorID)
	req.Header.Set("X-Actor-Role", "LIBRARIAN")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return issueResult{UserID: userID, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return issueResult{UserID: userID, StatusCode: resp.StatusCode, Err: fmt.Errorf("bad JSON: %s", raw)}
	}
	return issueResult{UserID: userID, StatusCode: resp.StatusCode, TransactionID: parsed.ID}
}
