// designxctl is a small operator CLI for the extension backend: submit
// agent jobs, inspect them and follow their output from a terminal.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/akhatua2/designx/pkg/extapi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "run":
		runRun(os.Args[2:])
	case "jobs":
		runJobs(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "logs":
		runLogs(os.Args[2:])
	case "cancel":
		runCancel(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: designxctl <run|jobs|status|logs|cancel|watch|verify> [...]")
}

func urlFlag(fs *flag.FlagSet) *string {
	return fs.String("url", getenv("DESIGNX_URL", "http://localhost:8000"), "backend URL")
}

func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	url := urlFlag(fs)
	repo := fs.String("repo", "", "GitHub repository URL")
	issue := fs.String("issue", "", "GitHub issue URL")
	token := fs.String("token", os.Getenv("GITHUB_TOKEN"), "GitHub token forwarded to the agent")
	_ = fs.Parse(args)

	if strings.TrimSpace(*repo) == "" || strings.TrimSpace(*issue) == "" {
		fatalf("--repo and --issue are required")
	}
	if strings.TrimSpace(*token) == "" {
		fatalf("--token or GITHUB_TOKEN is required")
	}

	var resp extapi.RunAgentResponse
	postJSON(*url+"/api/agent/run", extapi.RunAgentRequest{
		RepoURL:     *repo,
		IssueURL:    *issue,
		GithubToken: *token,
	}, &resp)
	fmt.Printf("job %s accepted (%s)\n", resp.JobID, resp.Status)
}

func runJobs(args []string) {
	fs := flag.NewFlagSet("jobs", flag.ExitOnError)
	url := urlFlag(fs)
	_ = fs.Parse(args)

	var resp extapi.JobListResponse
	getJSON(*url+"/api/agent/jobs", &resp)
	if len(resp.Jobs) == 0 {
		fmt.Println("no jobs")
		return
	}
	for _, j := range resp.Jobs {
		fmt.Printf("%s  %-10s  %s  %s\n", j.JobID, j.Status, j.CreatedAt.Format(time.RFC3339), j.RepoURL)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	url := urlFlag(fs)
	_ = fs.Parse(args)
	jobID := requireJobID(fs)

	var resp extapi.JobStatusResponse
	getJSON(*url+"/api/agent/jobs/"+jobID, &resp)
	fmt.Printf("job:     %s\n", resp.JobID)
	fmt.Printf("status:  %s\n", resp.Status)
	fmt.Printf("created: %s\n", resp.CreatedAt.Format(time.RFC3339))
	if resp.StartedAt != nil {
		fmt.Printf("started: %s\n", resp.StartedAt.Format(time.RFC3339))
	}
	if resp.CompletedAt != nil {
		fmt.Printf("done:    %s\n", resp.CompletedAt.Format(time.RFC3339))
	}
	if resp.ErrorMessage != "" {
		fmt.Printf("error:   %s\n", resp.ErrorMessage)
	}
	if resp.Result != nil {
		fmt.Printf("result:  success=%t exit_code=%d\n", resp.Result.Success, resp.Result.ExitCode)
	}
}

func runLogs(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	url := urlFlag(fs)
	_ = fs.Parse(args)
	jobID := requireJobID(fs)

	var resp extapi.JobStatusResponse
	getJSON(*url+"/api/agent/jobs/"+jobID, &resp)
	for _, line := range resp.ProgressLogs {
		fmt.Println(line)
	}
}

func runCancel(args []string) {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	url := urlFlag(fs)
	_ = fs.Parse(args)
	jobID := requireJobID(fs)

	req, err := http.NewRequest(http.MethodDelete, *url+"/api/agent/jobs/"+jobID, nil)
	if err != nil {
		fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("cancel failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		fatalf("cancel returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	fmt.Printf("job %s cancelled\n", jobID)
}

// runWatch tails the job's event stream and prints new log lines until
// the job reaches a terminal state.
func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	url := urlFlag(fs)
	_ = fs.Parse(args)
	jobID := requireJobID(fs)

	resp, err := http.Get(*url + "/api/agent/jobs/" + jobID + "/stream")
	if err != nil {
		fatalf("stream failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		fatalf("stream returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	var event string
	seen := map[string]bool{}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			event = name
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		switch event {
		case "error":
			var payload map[string]string
			_ = json.Unmarshal([]byte(data), &payload)
			fatalf("stream error: %s", payload["message"])
		case "job.snapshot", "job.update":
			var ev extapi.JobStreamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				continue
			}
			for _, l := range ev.Logs {
				if !seen[l] {
					seen[l] = true
					fmt.Println(l)
				}
			}
		case "job.done":
			var ev extapi.JobStreamEvent
			_ = json.Unmarshal([]byte(data), &ev)
			fmt.Printf("job %s finished: %s\n", jobID, ev.Status)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		fatalf("stream read: %v", err)
	}
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	url := urlFlag(fs)
	_ = fs.Parse(args)

	healthURL := strings.TrimRight(*url, "/") + "/health"
	resp, err := http.Get(healthURL)
	if err != nil {
		fatalf("health check failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		fatalf("health check returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	fmt.Printf("ok: %s\n", healthURL)
}

func requireJobID(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fatalf("job id is required")
	}
	return fs.Arg(0)
}

func postJSON(url string, reqBody, respBody any) {
	b, err := json.Marshal(reqBody)
	if err != nil {
		fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		fatalf("request returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			fatalf("decode response: %v", err)
		}
	}
}

func getJSON(url string, respBody any) {
	resp, err := http.Get(url)
	if err != nil {
		fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		fatalf("request returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		fatalf("decode response: %v", err)
	}
}

func getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
