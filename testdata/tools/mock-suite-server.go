// mock-suite-server is a test helper binary that answers suite listing
// queries with JSON-RPC 2.0 over stdio.
//
//go:build ignore

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   any    `json:"error,omitempty"`
}

type record struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
	Mod  string   `json:"mod"`
}

var suites = map[string][]record{
	"suites/smoke": {
		{Name: "m1.tc_a", Tags: []string{"smoke"}, Mod: "m1"},
		{Name: "m1.tc_b", Tags: []string{}, Mod: "m1"},
	},
	"suites/broken": {
		{Name: "", Tags: []string{}, Mod: "m2"},
	},
}

func main() {
	fmt.Fprintln(os.Stderr, "mock-suite-server: listening")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var req request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			continue
		}
		if req.Method == "shutdown" {
			os.Exit(0)
		}

		resp := response{JSONRPC: "2.0", ID: req.ID}
		switch req.Method {
		case "suite/list":
			var params struct {
				Path string `json:"path"`
			}
			json.Unmarshal(req.Params, &params)
			if recs, ok := suites[params.Path]; ok {
				resp.Result = recs
			} else {
				resp.Error = map[string]any{
					"code":    "NOT_FOUND",
					"message": fmt.Sprintf("no suite at %q", params.Path),
				}
			}
		case "test/hang":
			continue
		default:
			resp.Error = map[string]any{
				"code":    -32601,
				"message": fmt.Sprintf("method %q not found", req.Method),
			}
		}

		// a notification first, which clients must skip
		fmt.Fprintln(os.Stdout, `{"jsonrpc":"2.0","method":"progress","params":{}}`)
		data, _ := json.Marshal(resp)
		fmt.Fprintln(os.Stdout, string(data))
	}
}
