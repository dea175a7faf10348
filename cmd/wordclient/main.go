// Command wordclient polls the word service and logs each payload.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type payload struct {
	Payload string `json:"payload"`
	Error   string `json:"error,omitempty"`
}

type result struct {
	Status  int
	Payload payload
}

var (
	endpoint string
	count    int
	interval time.Duration
	timeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "wordclient",
	Short: "Request N words from the word service, one every interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: timeout}
		results := poll(cmd.Context(), client, endpoint, count, interval)
		var rejected int
		for _, r := range results {
			if r.Status == http.StatusTooManyRequests {
				rejected++
			}
		}
		log.Info().Int("requests", len(results)).Int("rejected", rejected).Msg("Done")
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&endpoint, "url", "http://127.0.0.1:8080/word", "Word endpoint")
	rootCmd.Flags().IntVarP(&count, "count", "n", 10, "Number of requests")
	rootCmd.Flags().DurationVarP(&interval, "interval", "m", 10*time.Millisecond, "Pause between requests")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Per-request timeout")
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// poll issues n requests, pausing every between them. A failed request is
// logged and polling continues.
func poll(ctx context.Context, client *http.Client, url string, n int, every time.Duration) []result {
	results := make([]result, 0, n)
	for i := 0; i < n; i++ {
		r, err := fetch(ctx, client, url)
		if err != nil {
			log.Error().Err(err).Int("request", i+1).Msg("Request failed")
		} else {
			results = append(results, r)
			log.Info().Int("request", i+1).Int("status", r.Status).Str("payload", r.Payload.Payload).Msg("Word received")
		}
		if i == n-1 {
			break
		}
		select {
		case <-ctx.Done():
			return results
		case <-time.After(every):
		}
	}
	return results
}

func fetch(ctx context.Context, client *http.Client, url string) (result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return result{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return result{}, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	var p payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return result{}, fmt.Errorf("extracting word from response: %w", err)
	}
	return result{Status: resp.StatusCode, Payload: p}, nil
}
