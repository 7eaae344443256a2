package main

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const dimensions = 384

type tender struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type generateResponse struct {
	Embeddings      [][]float32 `json:"embeddings"`
	EmbeddingInputs []string    `json:"embedding_inputs"`
}

type stats struct {
	Embedded   int64    `json:"embedded"`
	Syncs      int64    `json:"syncs"`
	LastSyncs  []string `json:"last_syncs"`
	FailEmbeds bool     `json:"fail_embeds"`
	Since      string   `json:"since"`
}

var (
	mu         sync.Mutex
	embedded   int64
	syncs      int64
	lastSyncs  []string
	failEmbeds bool
	since      time.Time
	maxStored  = 50
)

func main() {
	since = time.Now().UTC()
	failEmbeds = os.Getenv("FAIL_EMBEDDINGS") == "true"

	addr := ":8000"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/embeddings/generate/data", generateHandler)
	http.HandleFunc("/elasticsearch/sync", syncHandler)
	http.HandleFunc("/elasticsearch/sync/", syncHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		failEmbeds = r.URL.Query().Get("embeddings") != "false"
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "fail_embeddings=%t\n", failEmbeds)
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		embedded = 0
		syncs = 0
		lastSyncs = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	log.Printf("mlstub listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

// generateHandler returns a deterministic vector per tender derived from its
// title and description.
func generateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mu.Lock()
	fail := failEmbeds
	mu.Unlock()
	if fail {
		http.Error(w, `{"error":"model not loaded"}`, http.StatusServiceUnavailable)
		return
	}

	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	var batch []tender
	if err := json.Unmarshal(body, &batch); err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}

	resp := generateResponse{
		Embeddings:      make([][]float32, len(batch)),
		EmbeddingInputs: make([]string, len(batch)),
	}
	for i, t := range batch {
		input := strings.TrimSpace(t.Title + " " + t.Description)
		resp.EmbeddingInputs[i] = input
		resp.Embeddings[i] = vector(input)
	}

	mu.Lock()
	embedded += int64(len(batch))
	mu.Unlock()

	log.Printf("embedded %d tenders", len(batch))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func vector(input string) []float32 {
	v := make([]float32, dimensions)
	h := fnv.New32a()
	for i := range v {
		h.Reset()
		fmt.Fprintf(h, "%d:%s", i, input)
		v[i] = float32(h.Sum32()%2000)/1000 - 1
	}
	return v
}

func syncHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/elasticsearch/sync"), "/")

	mu.Lock()
	syncs++
	target := id
	if target == "" {
		target = "*"
	}
	lastSyncs = append(lastSyncs, target)
	if len(lastSyncs) > maxStored {
		lastSyncs = lastSyncs[len(lastSyncs)-maxStored:]
	}
	current := embedded
	mu.Unlock()

	log.Printf("sync requested: %s", target)
	w.Header().Set("Content-Type", "application/json")
	if id != "" {
		fmt.Fprintf(w, `{"status":"success","tender_id":%q,"message":"tender indexed"}`, id)
		return
	}
	fmt.Fprintf(w, `{"status":"success","total_tenders":%d,"indexed":%d,"failed":0}`, current, current)
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Embedded:   embedded,
		Syncs:      syncs,
		LastSyncs:  lastSyncs,
		FailEmbeds: failEmbeds,
		Since:      since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}
