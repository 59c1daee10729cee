package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	baseURL  string
	workers  int
	duration time.Duration
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

// ids collects the sessions created during the run so readers have targets.
type ids struct {
	mu  sync.RWMutex
	all []string
}

func (s *ids) add(id string) {
	s.mu.Lock()
	s.all = append(s.all, id)
	s.mu.Unlock()
}

func (s *ids) pick(rng *rand.Rand) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.all) == 0 {
		return "", false
	}
	return s.all[rng.Intn(len(s.all))], true
}

type runner struct {
	opts    options
	client  *http.Client
	photo   []byte
	created ids
}

func main() {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive a running flashback server with uploads and reads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newRunner(opts).run()
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "url", "http://127.0.0.1:8090", "server base URL")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 20, "concurrent workers")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "t", 10*time.Second, "duration of each phase")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunner(opts options) *runner {
	return &runner{
		opts: opts,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        200,
				MaxIdleConnsPerHost: 200,
				IdleConnTimeout:     30 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   2 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
		photo: samplePhoto(),
	}
}

// samplePhoto is a small gradient PNG used for every upload.
func samplePhoto() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func (r *runner) run() error {
	fmt.Println("=== Flashback Load Test ===")
	fmt.Printf("Target: %s | Workers: %d | Phase: %s\n\n", r.opts.baseURL, r.opts.workers, r.opts.duration)

	fmt.Print("Waiting for server... ")
	if err := r.waitReady(); err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Println("OK")

	fmt.Println("\n--- Phase 1: Uploads (POST /sessions) ---")
	r.runPhase(func(rng *rand.Rand) result {
		return r.upload(rng)
	})

	fmt.Println("\n--- Phase 2: Mixed load (20% upload, 80% read) ---")
	r.runPhase(func(rng *rand.Rand) result {
		p := rng.Float64()
		switch {
		case p < 0.20:
			return r.upload(rng)
		case p < 0.45:
			return r.get("GET /sessions", "/sessions")
		case p < 0.75:
			return r.getSession(rng, "")
		case p < 0.85:
			return r.getSession(rng, "/original")
		default:
			return r.get("GET /rate-limit", "/rate-limit?requested=1")
		}
	})

	fmt.Println("\n--- Phase 3: Read-only load ---")
	r.runPhase(func(rng *rand.Rand) result {
		p := rng.Float64()
		switch {
		case p < 0.40:
			return r.get("GET /sessions", "/sessions")
		case p < 0.80:
			return r.getSession(rng, "")
		case p < 0.90:
			return r.get("GET /decades", "/decades")
		default:
			return r.get("GET /health", "/health")
		}
	})
	return nil
}

func (r *runner) waitReady() error {
	var lastErr error
	for i := 0; i < 30; i++ {
		resp, err := r.client.Get(r.opts.baseURL + "/health")
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("server not responding: %w", lastErr)
}

func (r *runner) runPhase(work func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < r.opts.workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					results <- work(rng)
				}
			}
		}(time.Now().UnixNano() + int64(i))
	}

	all := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for res := range results {
			s, ok := all[res.endpoint]
			if !ok {
				s = &stats{}
				all[res.endpoint] = s
			}
			s.count++
			if res.err {
				s.errors++
			}
			s.latencies = append(s.latencies, res.latency)
		}
		close(done)
	}()

	time.Sleep(r.opts.duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(all, r.opts.duration)
}

func (r *runner) upload(rng *rand.Rand) result {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("image", "photo.png")
	_, _ = fw.Write(r.photo)
	if rng.Float64() < 0.5 {
		_ = mw.WriteField("decade", "1970s")
	}
	_ = mw.Close()

	start := time.Now()
	resp, err := r.client.Post(r.opts.baseURL+"/sessions", mw.FormDataContentType(), &body)
	lat := time.Since(start)
	if err != nil {
		return result{"POST /sessions", 0, lat, true}
	}
	defer resp.Body.Close()

	var created struct {
		ID string `json:"id"`
	}
	if resp.StatusCode == http.StatusCreated && json.NewDecoder(resp.Body).Decode(&created) == nil {
		r.created.add(created.ID)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return result{"POST /sessions", resp.StatusCode, lat, resp.StatusCode != http.StatusCreated}
}

func (r *runner) getSession(rng *rand.Rand, suffix string) result {
	id, ok := r.created.pick(rng)
	if !ok {
		return r.get("GET /sessions", "/sessions")
	}
	return r.get("GET /sessions/{id}"+suffix, "/sessions/"+id+suffix)
}

func (r *runner) get(endpoint, path string) result {
	start := time.Now()
	resp, err := r.client.Get(r.opts.baseURL + path)
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	// sessions may be evicted by the history bound while the test runs
	failed := resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound
	return result{endpoint, resp.StatusCode, lat, failed}
}

func printResults(all map[string]*stats, duration time.Duration) {
	var totalOps, totalErrors int64

	endpoints := make([]string, 0, len(all))
	for ep := range all {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-34s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + strings.Repeat("-", 100))

	for _, ep := range endpoints {
		s := all[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		fmt.Printf("  %-34s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors,
			fmtDur(avgDuration(s.latencies)),
			fmtDur(percentile(s.latencies, 0.50)),
			fmtDur(percentile(s.latencies, 0.95)),
			fmtDur(percentile(s.latencies, 0.99)))
	}

	if totalOps == 0 {
		fmt.Println("  no requests completed")
		return
	}
	fmt.Println("  " + strings.Repeat("-", 100))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, float64(totalOps)/duration.Seconds())
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}
