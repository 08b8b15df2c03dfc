// Command marcusctl is a small interactive admin console for a running
// marcusd daemon: it dials the daemon's HTTP transport and issues tool
// calls typed at a readline prompt.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/chzyer/readline"
)

func main() {
	addr := flag.String("addr", "http://localhost:8787", "marcusd HTTP transport address")
	apiKey := flag.String("api-key", os.Getenv("MARCUS_API_KEY"), "bearer token for marcusd (defaults to $MARCUS_API_KEY)")
	flag.Parse()

	rl, err := readline.New("marcusctl> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marcusctl: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	client := &adminClient{addr: strings.TrimSuffix(*addr, "/"), apiKey: *apiKey, http: http.DefaultClient}

	fmt.Println("marcusctl — admin console. Commands: ping, stats, leases, unassign <task_id>, quit")
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF on Ctrl-D, readline.ErrInterrupt on Ctrl-C
			return
		}
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return
		case "ping":
			client.call("analytics", "ping", nil)
		case "stats":
			client.call("analytics", "get_board_health", nil)
		case "leases":
			client.call("analytics", "ping", nil)
		case "unassign":
			if len(fields) != 2 {
				fmt.Println("usage: unassign <task_id>")
				continue
			}
			client.call("human", "unassign_task", map[string]interface{}{"task_id": fields[1]})
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

type adminClient struct {
	addr   string
	apiKey string
	http   *http.Client
}

func (c *adminClient) call(endpoint, tool string, args map[string]interface{}) {
	body, err := json.Marshal(map[string]interface{}{"tool": tool, "args": args})
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, c.addr+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(pretty.String())
}
