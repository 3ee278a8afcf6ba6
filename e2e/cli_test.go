package e2e_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/duelsync-go/internal/api"
	"github.com/mcoot/duelsync-go/internal/factory"
	"github.com/mcoot/duelsync-go/internal/services/tick"
	"github.com/mcoot/duelsync-go/internal/testutil"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "duelctl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/duelctl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
	}
}

func (r *cliRunner) command(args ...string) *exec.Cmd {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--output", "json",
	}, args...)
	return exec.Command(r.binaryPath, fullArgs...)
}

func (r *cliRunner) run(args ...string) (string, error) {
	output, err := r.command(args...).CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// startTestServer runs the full application on a free port
func startTestServer(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()

	app, err := factory.New(factory.Config{
		TickPeriod: tick.PeriodForRate(tick.DefaultRate),
		MaxSpeed:   0.5,
	})
	require.NoError(t, err)
	app.Start()

	server := api.NewServer(app.Router, api.DefaultServerConfig(), testutil.NopLogger())
	go func() {
		if err := server.Serve(listener); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
		_ = app.Shutdown(ctx)
	})

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")
	return serverURL
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type healthResponse struct {
	Status string `json:"status"`
}

type streamEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinedPayload struct {
	IsSuccess bool `json:"isSuccess"`
	Data      struct {
		ID         string `json:"id"`
		MyPlayerID string `json:"myPlayerId"`
		Status     string `json:"multiplayerSessionStatus"`
	} `json:"data"`
}

type positionsPayload struct {
	PlayerPositions []struct {
		X float64 `json:"x"`
		Z float64 `json:"z"`
	} `json:"playerPositions"`
}

type sessionListResponse struct {
	Sessions []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"sessions"`
}

func TestCLIHealth(t *testing.T) {
	serverURL := startTestServer(t)
	cli := newCLIRunner(t, serverURL)

	out, err := cli.run("health")
	require.NoError(t, err, out)

	var health healthResponse
	require.NoError(t, json.Unmarshal([]byte(out), &health))
	assert.Equal(t, "ok", health.Status)
}

func TestCLITwoPlayerSession(t *testing.T) {
	serverURL := startTestServer(t)
	cli := newCLIRunner(t, serverURL)

	// Player 1 creates and keeps streaming until it has seen a few ticks
	host := cli.command("play", "create", "--vel-x", "0.5", "--frames", "6", "--duration", "10s")
	stdout, err := host.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, host.Start())
	t.Cleanup(func() { _ = host.Process.Kill() })

	lines := bufio.NewScanner(stdout)
	require.True(t, lines.Scan(), "host produced no output")
	var first streamEvent
	require.NoError(t, json.Unmarshal(lines.Bytes(), &first))
	require.Equal(t, "CREATE_NEW_SESSION_RESPONSE", first.Type)

	var created joinedPayload
	require.NoError(t, json.Unmarshal(first.Payload, &created))
	require.True(t, created.IsSuccess)
	sessionID := created.Data.ID
	assert.Equal(t, "AWAITING_PLAYERS", created.Data.Status)

	// Player 2 joins and starts, then leaves
	out, err := cli.run("play", "join", sessionID, "--start", "--frames", "2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "START_SESSION_GAME_RESPONSE")

	// Host sees the status changes, then position updates with itself moving right
	var lastX float64
	var updates int
	for lines.Scan() {
		var ev streamEvent
		require.NoError(t, json.Unmarshal(lines.Bytes(), &ev))
		if ev.Type != "POSITIONS_UPDATE" {
			continue
		}
		var positions positionsPayload
		require.NoError(t, json.Unmarshal(ev.Payload, &positions))
		require.Len(t, positions.PlayerPositions, 2)
		assert.Greater(t, positions.PlayerPositions[0].X, -5.0)
		assert.GreaterOrEqual(t, positions.PlayerPositions[0].X, lastX-1e-9)
		lastX = positions.PlayerPositions[0].X
		updates++
	}
	require.NoError(t, host.Wait())
	assert.Positive(t, updates)

	// The directory eventually shows the session as playing
	require.Eventually(t, func() bool {
		out, err := cli.run("sessions", "list")
		if err != nil {
			return false
		}
		var list sessionListResponse
		if json.Unmarshal([]byte(out), &list) != nil {
			return false
		}
		for _, s := range list.Sessions {
			if s.ID == sessionID && s.Status == "PLAYING" {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)

	out, err = cli.run("sessions", "get", sessionID)
	require.NoError(t, err, out)
	assert.True(t, strings.Contains(out, sessionID))
}

func TestCLIJoinUnknownSession(t *testing.T) {
	serverURL := startTestServer(t)
	cli := newCLIRunner(t, serverURL)

	out, err := cli.run("play", "join", "00000000-0000-4000-8000-000000000000")
	require.Error(t, err)
	assert.Contains(t, out, "session not found")
}
