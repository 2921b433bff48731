// Minimal end-to-end integration test for the ValidaÍ API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	baseURL  = getenv("API_URL", "http://localhost:8000")
	redisURL = getenv("REDIS_URL", "")
	// Without a provider credential the server answers 500 PROVIDER_NOT_CONFIGURED; both are accepted.
	expectProvider = os.Getenv("EXPECT_PROVIDER") == "1"
)

const claim = "O Brasil foi o país que mais ganhou Copas do Mundo de futebol masculino."

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	checkHealth()
	checkValidation()

	requestID := uuid.NewString()
	verifyClaim(requestID)
	recordID := checkHistory(requestID)
	checkStats()
	if redisURL != "" {
		checkEvent(requestID)
	}
	deleteRecord(recordID)

	fmt.Println("✓ all endpoints passed")
}

// ----------------------------- health

func checkHealth() {
	var resp struct {
		Status            string `json:"status"`
		APIKeysConfigured bool   `json:"api_keys_configured"`
	}
	doJSON("GET", "/health", "", nil, &resp, http.StatusOK)
	if resp.Status != "healthy" {
		log.Fatalf("health: status %q", resp.Status)
	}
	if expectProvider && !resp.APIKeysConfigured {
		log.Fatal("health: provider credential expected")
	}
}

// ----------------------------- verify

func checkValidation() {
	var resp struct {
		Error string `json:"error"`
	}
	doJSON("POST", "/api/v1/verify", "", map[string]any{}, &resp, http.StatusBadRequest)
	if resp.Error != "MISSING_INPUT" {
		log.Fatalf("verify: want MISSING_INPUT got %q", resp.Error)
	}
}

func verifyClaim(requestID string) {
	want := http.StatusOK
	if !expectProvider {
		want = 0
	}
	var resp struct {
		Status    string         `json:"status"`
		ErrorCode string         `json:"error_code"`
		Result    map[string]any `json:"result"`
	}
	code := doJSON("POST", "/api/v1/verify", requestID, map[string]any{"text": claim}, &resp, want)
	switch {
	case code == http.StatusOK && resp.Result["classification"] == nil:
		log.Fatal("verify: success without classification")
	case code == http.StatusInternalServerError && resp.ErrorCode == "":
		log.Fatal("verify: error envelope without code")
	case code != http.StatusOK && code != http.StatusInternalServerError:
		log.Fatalf("verify: unexpected status %d", code)
	}
	log.Printf("verify: %d %s %v", code, resp.Status, resp.Result["classification"])
}

// ----------------------------- history

func checkHistory(requestID string) string {
	var page struct {
		Total int64 `json:"total"`
		Items []struct {
			ID        string `json:"id"`
			InputText string `json:"input_text"`
		} `json:"items"`
	}
	doJSON("GET", "/api/v1/history?request_id="+requestID, "", nil, &page, http.StatusOK)
	if page.Total != 1 || len(page.Items) != 1 {
		log.Fatalf("history: %d records for request %s", page.Total, requestID)
	}
	id := page.Items[0].ID

	var rec struct {
		InputText string `json:"input_text"`
	}
	doJSON("GET", "/api/v1/history/"+id, "", nil, &rec, http.StatusOK)
	if rec.InputText != claim {
		log.Fatalf("history: stored %q", rec.InputText)
	}

	var search struct {
		Total int64 `json:"total"`
	}
	doJSON("GET", "/api/v1/history?search=Copas&page_size=5", "", nil, &search, http.StatusOK)
	if search.Total == 0 {
		log.Fatal("history: search did not find the claim")
	}
	return id
}

func checkStats() {
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Total  int64 `json:"total_verifications"`
			Errors int64 `json:"errors"`
		} `json:"data"`
	}
	doJSON("GET", "/api/v1/stats", "", nil, &resp, http.StatusOK)
	if !resp.Success || resp.Data.Total+resp.Data.Errors == 0 {
		log.Fatalf("stats: %+v", resp)
	}
}

func deleteRecord(id string) {
	doJSON("DELETE", "/api/v1/history/"+id, "", nil, nil, http.StatusOK)
	doJSON("GET", "/api/v1/history/"+id, "", nil, nil, http.StatusNotFound)
}

// ----------------------------- events

func checkEvent(requestID string) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("redis url: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := rdb.XRevRangeN(ctx, "validai.verifications", "+", "-", 50).Result()
	if err != nil {
		log.Fatalf("redis xrevrange: %v", err)
	}
	for _, m := range msgs {
		if m.Values["request_id"] == requestID {
			return
		}
	}
	log.Fatal("events: verification not published")
}

// ----------------------------- helpers

// doJSON performs the request and returns the status; want 0 accepts any status.
func doJSON(method, path, requestID string, body, out any, want int) int {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("%s %s encode: %v", method, path, err)
		}
	}
	req, _ := http.NewRequest(method, baseURL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	client := &http.Client{Timeout: 2 * time.Minute}
	res, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if want != 0 && res.StatusCode != want {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		log.Fatalf("%s %s: want %d got %d: %s", method, path, want, res.StatusCode, b)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
	return res.StatusCode
}
