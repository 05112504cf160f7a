//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// process is a running portfolio subcommand (serve or devstore).
type process struct {
	cmd     *exec.Cmd
	logFile string
}

// baseEnv is the environment every binary in a test shares. Config is read
// from env only; the YAML path points at a missing file.
func baseEnv(dataDir string) []string {
	return append(os.Environ(),
		"PORTFOLIO_CONFIG_PATH="+filepath.Join(dataDir, "nonexistent.yaml"),
		"PORTFOLIO_REMOTE_API_KEY="+testAPIKey,
		"PORTFOLIO_INSIGHT_PROVIDER=none",
		"PORTFOLIO_LOG_FORMAT=json",
	)
}

func startProcess(t *testing.T, name string, env []string, healthURL string, args ...string) *process {
	t.Helper()
	requirePortfolio(t)

	logFile := filepath.Join(t.TempDir(), name+".log")
	lf, err := os.Create(logFile)
	require.NoError(t, err, "create log file")

	cmd := exec.Command(portfolioBin, args...)
	cmd.Env = env
	cmd.Stdout = lf
	cmd.Stderr = lf

	if err := cmd.Start(); err != nil {
		lf.Close()
		require.NoError(t, err, "start %s", name)
	}

	p := &process{cmd: cmd, logFile: logFile}
	t.Cleanup(func() {
		p.stop()
		lf.Close()
	})

	if err := waitReady(healthURL, 10*time.Second); err != nil {
		logs, _ := os.ReadFile(logFile)
		require.NoError(t, err, "%s not ready\nlogs:\n%s", name, logs)
	}
	return p
}

func (p *process) stop() {
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Signal(os.Interrupt)
		_ = p.cmd.Wait()
	}
}

// waitReady polls url until it answers with any status below 500.
func waitReady(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < http.StatusInternalServerError {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timed out after %s", timeout)
}

// startDevstoreBinary runs `portfolio devstore` and returns its API root.
func startDevstoreBinary(t *testing.T, dataDir string) string {
	t.Helper()

	port := freePort(t)
	root := fmt.Sprintf("http://127.0.0.1:%d/api", port)
	startProcess(t, "devstore", baseEnv(dataDir), root+"/analytics/graphics",
		"devstore",
		"--port", fmt.Sprint(port),
		"--db", filepath.Join(dataDir, "devstore.db"),
	)
	return root
}

// startServeBinary runs `portfolio serve` against remoteURL and returns the
// dashboard API root.
func startServeBinary(t *testing.T, dataDir, remoteURL string, extraEnv ...string) string {
	t.Helper()

	port := freePort(t)
	env := append(baseEnv(dataDir),
		fmt.Sprintf("PORTFOLIO_PORT=%d", port),
		"PORTFOLIO_REMOTE_URL="+remoteURL,
		"PORTFOLIO_API_KEY="+testAPIKey,
		"PORTFOLIO_EXPORT_DIR="+filepath.Join(dataDir, "reports"),
	)
	env = append(env, extraEnv...)

	root := fmt.Sprintf("http://127.0.0.1:%d/api/v1", port)
	startProcess(t, "serve", env, root+"/health", "serve")
	return root
}

// runCLI runs a one-shot portfolio command and returns stdout.
func runCLI(t *testing.T, dataDir, remoteURL string, args ...string) (string, error) {
	t.Helper()
	requirePortfolio(t)

	cmd := exec.Command(portfolioBin, append(args, "--remote", remoteURL)...)
	cmd.Env = baseEnv(dataDir)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return stdout.String(), fmt.Errorf("%v: %w\nstderr: %s", args, err, stderr.String())
	}
	return stdout.String(), nil
}

// apiCall sends an authenticated JSON request to the dashboard API.
func apiCall(t *testing.T, method, url string, body any, out any) int {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "%s %s", method, url)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && len(bytes.TrimSpace(data)) > 0 && !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/problem+json") {
		require.NoError(t, json.Unmarshal(data, out), "decode %s %s\n%s", method, url, data)
	}
	return resp.StatusCode
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "free port")
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
