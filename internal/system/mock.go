package system

import (
	"context"
	"strings"
	"sync"
)

// MockCommand is one recorded invocation.
type MockCommand struct {
	Name string
	Args []string
}

// String renders the command the way it would be logged.
func (c MockCommand) String() string {
	return CommandLine(c.Name, c.Args...)
}

// MockResponse is the canned result of a command.
type MockResponse struct {
	Output []byte
	Err    error
}

// MockExecutor records commands instead of running them. Responses are
// matched against the shell-quoted command line by prefix, on word
// boundaries; the longest matching prefix wins and unmatched commands get
// DefaultResponse.
type MockExecutor struct {
	mu        sync.Mutex
	Commands  []MockCommand
	responses map[string]MockResponse

	DefaultResponse MockResponse
}

// NewMockExecutor returns a MockExecutor where every command succeeds.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{responses: make(map[string]MockResponse)}
}

// AddResponse registers the result for command lines starting with prefix,
// such as "useradd" or "unison /data/app.magic".
func (m *MockExecutor) AddResponse(prefix string, output []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prefix] = MockResponse{Output: output, Err: err}
}

func (m *MockExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := MockCommand{Name: name, Args: append([]string(nil), args...)}
	line := cmd.String()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = append(m.Commands, cmd)

	best, found := "", false
	for prefix := range m.responses {
		if matchesPrefix(line, prefix) && len(prefix) >= len(best) {
			best, found = prefix, true
		}
	}
	if !found {
		return m.DefaultResponse.Output, m.DefaultResponse.Err
	}
	resp := m.responses[best]
	return resp.Output, resp.Err
}

func matchesPrefix(line, prefix string) bool {
	return line == prefix || strings.HasPrefix(line, prefix+" ")
}

// LastCommand returns the most recent invocation.
func (m *MockExecutor) LastCommand() (MockCommand, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.Commands); n > 0 {
		return m.Commands[n-1], true
	}
	return MockCommand{}, false
}

// CommandLines returns every recorded command as a shell-quoted line.
func (m *MockExecutor) CommandLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := make([]string, len(m.Commands))
	for i, c := range m.Commands {
		lines[i] = c.String()
	}
	return lines
}

// Count returns how many recorded command lines start with prefix.
func (m *MockExecutor) Count(prefix string) int {
	n := 0
	for _, line := range m.CommandLines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

// Reset forgets recorded commands. Responses are kept.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = nil
}
