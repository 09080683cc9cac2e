package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"course-enrollment/internal/config"
	domain "course-enrollment/internal/domain/enrollment"
	"course-enrollment/internal/domain/user"
	"course-enrollment/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// LoadTestConfig holds configuration for load testing
type LoadTestConfig struct {
	BaseURL         string
	FirstUserID     int64
	NumStudents     int
	ClassGroupIDs   []int64
	ConcurrentUsers int
	RequestsPerUser int
	GroupsPerBatch  int
	PollTimeout     time.Duration
}

// LoadTestResult holds the results of load testing
type LoadTestResult struct {
	TotalRequests     int
	AcceptedReqs      int
	RejectedReqs      int
	FailedReqs        int
	AvgResponseTimeMs float64
	MaxResponseTimeMs int64
	MinResponseTimeMs int64
	ThroughputRPS     float64
	ErrorsByType      map[string]int
	OutcomesByStatus  map[string]int
	PollTimeouts      int
}

// LoadTester drives enrollment batches against a running server
type LoadTester struct {
	config    LoadTestConfig
	client    *http.Client
	tokens    []string
	results   LoadTestResult
	mutex     sync.Mutex
	startTime time.Time
}

type batchEnvelope struct {
	Success bool                           `json:"success"`
	Data    domain.BatchEnrollmentResponse `json:"data"`
}

type statusEnvelope struct {
	Success bool                       `json:"success"`
	Data    domain.BatchStatusResponse `json:"data"`
}

// NewLoadTester creates a new load tester
func NewLoadTester(config LoadTestConfig) *LoadTester {
	return &LoadTester{
		config: config,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		results: newLoadTestResult(),
	}
}

func newLoadTestResult() LoadTestResult {
	return LoadTestResult{
		ErrorsByType:     make(map[string]int),
		OutcomesByStatus: make(map[string]int),
	}
}

// Initialize mints one student token per simulated user
func (lt *LoadTester) Initialize(tokens *service.TokenService) error {
	fmt.Println("Initializing load test data...")
	if lt.config.NumStudents <= 0 || len(lt.config.ClassGroupIDs) == 0 {
		return fmt.Errorf("need at least one student and one class group")
	}

	lt.tokens = make([]string, lt.config.NumStudents)
	for i := range lt.tokens {
		actor := user.Actor{UserID: lt.config.FirstUserID + int64(i), Role: user.RoleStudent}
		token, err := tokens.Issue(actor, 2*time.Hour)
		if err != nil {
			return fmt.Errorf("failed to issue token for user %d: %w", actor.UserID, err)
		}
		lt.tokens[i] = token
	}

	fmt.Printf("Issued %d student tokens for %d class groups\n", len(lt.tokens), len(lt.config.ClassGroupIDs))
	return nil
}

// RunLoadTest executes the load test
func (lt *LoadTester) RunLoadTest() {
	fmt.Printf("Starting load test with %d concurrent users...\n", lt.config.ConcurrentUsers)

	lt.startTime = time.Now()
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, lt.config.ConcurrentUsers)
	totalRequests := lt.config.ConcurrentUsers * lt.config.RequestsPerUser

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)

		go func(requestID int) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			lt.simulateBatch(requestID)
		}(i)

		time.Sleep(10 * time.Millisecond)
	}

	wg.Wait()

	lt.calculateMetrics()
	lt.printResults()
}

// simulateBatch submits one batch and polls it until every item settles
func (lt *LoadTester) simulateBatch(requestID int) {
	token := lt.tokens[requestID%len(lt.tokens)]

	n := lt.config.GroupsPerBatch
	if n > len(lt.config.ClassGroupIDs) {
		n = len(lt.config.ClassGroupIDs)
	}
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = lt.config.ClassGroupIDs[(requestID+i)%len(lt.config.ClassGroupIDs)]
	}

	jsonData, err := json.Marshal(domain.BatchEnrollmentRequest{RegisterClassGroupIDs: ids})
	if err != nil {
		lt.recordError("json_marshal")
		return
	}

	req, err := http.NewRequest(http.MethodPost, lt.config.BaseURL+"/api/v1/enrollments/batch", bytes.NewReader(jsonData))
	if err != nil {
		lt.recordError("build_request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	startTime := time.Now()
	resp, err := lt.client.Do(req)
	responseTime := time.Since(startTime)
	if err != nil {
		lt.recordError("http_request")
		return
	}
	defer resp.Body.Close()

	lt.recordResponse(resp.StatusCode, responseTime)
	if resp.StatusCode != http.StatusAccepted {
		return
	}

	var accepted batchEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		lt.recordError("decode_batch")
		return
	}
	lt.pollBatch(token, accepted.Data.BatchID)
}

func (lt *LoadTester) pollBatch(token, batchID string) {
	deadline := time.Now().Add(lt.config.PollTimeout)
	for time.Now().Before(deadline) {
		time.Sleep(250 * time.Millisecond)

		req, err := http.NewRequest(http.MethodGet, lt.config.BaseURL+"/api/v1/enrollments/batch/"+batchID, nil)
		if err != nil {
			lt.recordError("build_poll")
			return
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := lt.client.Do(req)
		if err != nil {
			continue
		}
		var status statusEnvelope
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil || resp.StatusCode != http.StatusOK {
			continue
		}

		settled := true
		for _, item := range status.Data.Items {
			if item.Status == domain.EnrollmentStatusPending {
				settled = false
				break
			}
		}
		if !settled {
			continue
		}

		lt.mutex.Lock()
		for _, item := range status.Data.Items {
			lt.results.OutcomesByStatus[item.Status.String()]++
		}
		lt.mutex.Unlock()
		return
	}

	lt.mutex.Lock()
	lt.results.PollTimeouts++
	lt.mutex.Unlock()
}

// recordResponse records the response metrics
func (lt *LoadTester) recordResponse(statusCode int, responseTime time.Duration) {
	lt.mutex.Lock()
	defer lt.mutex.Unlock()

	lt.results.TotalRequests++
	responseTimeMs := responseTime.Milliseconds()

	if lt.results.MaxResponseTimeMs < responseTimeMs {
		lt.results.MaxResponseTimeMs = responseTimeMs
	}
	if lt.results.MinResponseTimeMs == 0 || lt.results.MinResponseTimeMs > responseTimeMs {
		lt.results.MinResponseTimeMs = responseTimeMs
	}

	currentAvg := lt.results.AvgResponseTimeMs
	currentCount := float64(lt.results.TotalRequests)
	lt.results.AvgResponseTimeMs = (currentAvg*(currentCount-1) + float64(responseTimeMs)) / currentCount

	switch {
	case statusCode == http.StatusAccepted:
		lt.results.AcceptedReqs++
	case statusCode == http.StatusServiceUnavailable:
		lt.results.RejectedReqs++
		lt.results.ErrorsByType["maintenance"]++
	case statusCode >= 400 && statusCode < 500:
		// schedule conflicts, nothing eligible
		lt.results.RejectedReqs++
		lt.results.ErrorsByType[fmt.Sprintf("http_%d", statusCode)]++
	default:
		lt.results.FailedReqs++
		lt.results.ErrorsByType[fmt.Sprintf("http_%d", statusCode)]++
	}
}

func (lt *LoadTester) recordError(errorType string) {
	lt.mutex.Lock()
	defer lt.mutex.Unlock()

	lt.results.TotalRequests++
	lt.results.FailedReqs++
	lt.results.ErrorsByType[errorType]++
}

func (lt *LoadTester) calculateMetrics() {
	totalDuration := time.Since(lt.startTime)
	lt.results.ThroughputRPS = float64(lt.results.TotalRequests) / totalDuration.Seconds()
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// printResults displays the load test results
func (lt *LoadTester) printResults() {
	fmt.Println("\n" + strings.Repeat("=", 80))

	fmt.Printf("Test Configuration:\n")
	fmt.Printf("  - Concurrent Users: %d\n", lt.config.ConcurrentUsers)
	fmt.Printf("  - Requests per User: %d\n", lt.config.RequestsPerUser)
	fmt.Printf("  - Students: %d\n", lt.config.NumStudents)
	fmt.Printf("  - Class Groups: %d (%d per batch)\n", len(lt.config.ClassGroupIDs), lt.config.GroupsPerBatch)

	total := lt.results.TotalRequests
	fmt.Printf("\nSubmission:\n")
	fmt.Printf("  - Total Requests: %d\n", total)
	fmt.Printf("  - Accepted: %d (%.2f%%)\n", lt.results.AcceptedReqs, percent(lt.results.AcceptedReqs, total))
	fmt.Printf("  - Rejected: %d (%.2f%%)\n", lt.results.RejectedReqs, percent(lt.results.RejectedReqs, total))
	fmt.Printf("  - Failed: %d (%.2f%%)\n", lt.results.FailedReqs, percent(lt.results.FailedReqs, total))

	fmt.Printf("\nResponse Time Metrics:\n")
	fmt.Printf("  - Average: %.2f ms\n", lt.results.AvgResponseTimeMs)
	fmt.Printf("  - Minimum: %d ms\n", lt.results.MinResponseTimeMs)
	fmt.Printf("  - Maximum: %d ms\n", lt.results.MaxResponseTimeMs)

	fmt.Printf("\nThroughput:\n")
	fmt.Printf("  - Requests per Second: %.2f\n", lt.results.ThroughputRPS)

	if len(lt.results.OutcomesByStatus) > 0 || lt.results.PollTimeouts > 0 {
		fmt.Printf("\nWorker Outcomes:\n")
		for status, count := range lt.results.OutcomesByStatus {
			fmt.Printf("  - %s: %d\n", status, count)
		}
		fmt.Printf("  - batches still pending at timeout: %d\n", lt.results.PollTimeouts)
	}

	if len(lt.results.ErrorsByType) > 0 {
		fmt.Printf("\nError Breakdown:\n")
		for errorType, count := range lt.results.ErrorsByType {
			fmt.Printf("  - %s: %d\n", errorType, count)
		}
	}

	fmt.Printf("\nPerformance Analysis:\n")
	lt.analyzePerformance()
}

func (lt *LoadTester) analyzePerformance() {
	if lt.results.AvgResponseTimeMs > 1000 {
		fmt.Printf("  ⚠️  High average response time (>1s) indicates potential bottlenecks\n")
	} else if lt.results.AvgResponseTimeMs > 500 {
		fmt.Printf("  ⚠️  Moderate response time, monitor under higher load\n")
	} else {
		fmt.Printf("  ✅ Good response time performance\n")
	}

	if lt.results.FailedReqs > 0 {
		fmt.Printf("  ❌ %d requests failed with server or transport errors\n", lt.results.FailedReqs)
	} else {
		fmt.Printf("  ✅ No server errors\n")
	}

	if lt.results.PollTimeouts > 0 {
		fmt.Printf("  ⚠️  %d batches did not settle within %s; check worker throughput\n", lt.results.PollTimeouts, lt.config.PollTimeout)
	}

	if lt.results.OutcomesByStatus[domain.EnrollmentStatusEnrolledLedgerUpdateFailed.String()] > 0 {
		fmt.Printf("  ❌ Status ledger writes failed after commit; reconcile those enrollments\n")
	}
}

// RunConcurrencyStressTest tests system under extreme concurrent load
func (lt *LoadTester) RunConcurrencyStressTest() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("CONCURRENCY STRESS TEST")
	fmt.Println(strings.Repeat("=", 80))

	concurrencyLevels := []int{10, 50, 100, 200, 500}

	for _, concurrency := range concurrencyLevels {
		fmt.Printf("\nTesting with %d concurrent users...\n", concurrency)

		originalConfig := lt.config
		lt.config.ConcurrentUsers = concurrency
		lt.config.RequestsPerUser = 5

		lt.results = newLoadTestResult()
		lt.RunLoadTest()

		time.Sleep(2 * time.Second)
		lt.config = originalConfig
	}
}

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Run load tests against the Course Enrollment API",
	Long: `Run load tests against the Course Enrollment API.
Each simulated student submits enrollment batches and polls the batch status
until the worker has settled every class group. Tokens are signed with the
configured auth.jwt_secret, so the target server must share it.`,
	Run: func(cmd *cobra.Command, args []string) {
		runLoadTest()
	},
}

var (
	baseURL         string
	firstUserID     int64
	numStudents     int
	classGroupIDs   []int64
	concurrentUsers int
	requestsPerUser int
	groupsPerBatch  int
	pollTimeout     time.Duration
	stressTest      bool
)

func init() {
	rootCmd.AddCommand(loadtestCmd)

	loadtestCmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the enrollment API")
	loadtestCmd.Flags().Int64Var(&firstUserID, "first-user-id", 1000, "User id of the first simulated student")
	loadtestCmd.Flags().IntVar(&numStudents, "students", 1000, "Number of students to simulate")
	loadtestCmd.Flags().Int64SliceVar(&classGroupIDs, "class-groups", []int64{1, 2, 3, 4, 5}, "Class group ids to register for")
	loadtestCmd.Flags().IntVar(&concurrentUsers, "concurrent", 100, "Number of concurrent users")
	loadtestCmd.Flags().IntVar(&requestsPerUser, "requests", 10, "Number of requests per user")
	loadtestCmd.Flags().IntVar(&groupsPerBatch, "per-batch", 3, "Class groups per batch")
	loadtestCmd.Flags().DurationVar(&pollTimeout, "poll-timeout", 30*time.Second, "How long to poll a batch before giving up")
	loadtestCmd.Flags().BoolVar(&stressTest, "stress", false, "Run concurrency stress test")
}

func runLoadTest() {
	cfg := config.Get()

	loadTester := NewLoadTester(LoadTestConfig{
		BaseURL:         baseURL,
		FirstUserID:     firstUserID,
		NumStudents:     numStudents,
		ClassGroupIDs:   classGroupIDs,
		ConcurrentUsers: concurrentUsers,
		RequestsPerUser: requestsPerUser,
		GroupsPerBatch:  groupsPerBatch,
		PollTimeout:     pollTimeout,
	})
	if err := loadTester.Initialize(service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)); err != nil {
		fmt.Printf("Load test setup failed: %v\n", err)
		return
	}

	fmt.Println("Course Enrollment Load Test")
	fmt.Println("===========================")

	loadTester.RunLoadTest()

	if stressTest {
		loadTester.RunConcurrencyStressTest()
	}
}
