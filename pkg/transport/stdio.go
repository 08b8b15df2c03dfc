package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/marcus-ai/marcus/pkg/logger"
)

// stdioRequest is one line of an agent's stdin stream.
type stdioRequest struct {
	Endpoint Endpoint               `json:"endpoint"`
	Tool     string                 `json:"tool"`
	Args     map[string]interface{} `json:"args"`
}

// StdioServer serves tool calls as line-delimited JSON over stdin/stdout,
// the default transport for a single locally-spawned agent process.
type StdioServer struct {
	dispatcher *Dispatcher
	log        *logger.Logger
	in         io.Reader
	out        io.Writer
}

func NewStdioServer(d *Dispatcher, log *logger.Logger) *StdioServer {
	return &StdioServer{dispatcher: d, log: log, in: os.Stdin, out: os.Stdout}
}

func (s *StdioServer) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if line == "" {
				continue
			}
			s.handleLine(ctx, line)
		}
	}
}

func (s *StdioServer) handleLine(ctx context.Context, line string) {
	var req stdioRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.writeEnvelope(map[string]interface{}{
			"success": false,
			"error":   "malformed request: " + err.Error(),
		})
		return
	}
	if req.Endpoint == "" {
		req.Endpoint = EndpointAgent
	}
	s.writeEnvelope(s.dispatcher.Dispatch(ctx, req.Endpoint, req.Tool, req.Args))
}

func (s *StdioServer) writeEnvelope(env map[string]interface{}) {
	data, err := marshalEnvelope(env)
	if err != nil {
		s.log.ErrorCF("transport", "failed to marshal response", logger.Fields{"error": err.Error()})
		return
	}
	data = append(data, '\n')
	if _, err := s.out.Write(data); err != nil {
		s.log.ErrorCF("transport", "failed to write response", logger.Fields{"error": err.Error()})
	}
}

// Shutdown is a no-op for stdio: Serve already returns once stdin closes or
// ctx is canceled.
func (s *StdioServer) Shutdown(ctx context.Context) error { return nil }
