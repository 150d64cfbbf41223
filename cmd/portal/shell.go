package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chronokeeptiming/portal/internal/config"
)

// shellRequest/shellResponse mirror control.request/response without
// importing internal/control, keeping the client free of server-side
// types (spec §6 CLI is a separate external collaborator).
type shellRequest struct {
	Command string      `json:"command"`
	Payload interface{} `json:"payload,omitempty"`
}

type shellResponse struct {
	Command string          `json:"command"`
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func newShellCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "interactive operator shell (spec §6 CLI)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(*cfgPath)
		},
	}
}

func runShell(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	conn, err := net.Dial("tcp", cfg.ControlAddr)
	if err != nil {
		return fmt.Errorf("shell: connect %s: %w", cfg.ControlAddr, err)
	}
	defer conn.Close()

	serverLines := bufio.NewScanner(conn)
	if serverLines.Scan() {
		fmt.Println(serverLines.Text())
	}

	fmt.Println("chronokeep-portal shell. Type 'help' for commands, 'quit' to exit.")
	stdin := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !stdin.Scan() {
			return nil
		}
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}
		if line == "help" {
			printHelp()
			continue
		}

		req, err := parseShellLine(line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}

		data, err := json.Marshal(req)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		if _, err := conn.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("shell: write: %w", err)
		}

		if !serverLines.Scan() {
			return fmt.Errorf("shell: connection closed by server")
		}
		var resp shellResponse
		if err := json.Unmarshal(serverLines.Bytes(), &resp); err != nil {
			fmt.Println("error: malformed response:", err)
			continue
		}
		printResponse(resp)

		if req.Command == "quit" {
			return nil
		}
	}
}

// parseShellLine implements the minimal "reader {add|connect|...} ...",
// "setting {sightings|zeroconf|control|name} <value>", "quit" grammar
// from spec §6. Sighting period values go through
// config.ParseSightingPeriod so SS/MM:SS/HH:MM:SS all work.
func parseShellLine(line string) (shellRequest, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return shellRequest{}, fmt.Errorf("empty command")
	}

	switch fields[0] {
	case "quit":
		return shellRequest{Command: "quit"}, nil

	case "reader":
		if len(fields) < 2 {
			return shellRequest{}, fmt.Errorf("usage: reader {add|connect|disconnect|remove|list} ...")
		}
		switch fields[1] {
		case "list":
			return shellRequest{Command: "reader_list"}, nil
		case "connect":
			return readerActionRequest("reader_connect", fields)
		case "disconnect":
			return readerActionRequest("reader_disconnect", fields)
		case "remove":
			return readerActionRequest("reader_remove", fields)
		case "add":
			if len(fields) < 6 {
				return shellRequest{}, fmt.Errorf("usage: reader add <nickname> <kind> <ip> <port>")
			}
			port, err := strconv.ParseUint(fields[5], 10, 16)
			if err != nil {
				return shellRequest{}, fmt.Errorf("invalid port %q: %w", fields[5], err)
			}
			return shellRequest{Command: "reader_add", Payload: map[string]interface{}{
				"nickname": fields[2], "kind": fields[3], "ipAddress": fields[4], "port": port,
			}}, nil
		default:
			return shellRequest{}, fmt.Errorf("unknown reader subcommand %q", fields[1])
		}

	case "setting":
		if len(fields) < 3 {
			return shellRequest{}, fmt.Errorf("usage: setting {sightings|zeroconf|control|name} <value>")
		}
		name, value := fields[1], fields[2]
		switch name {
		case "sightings":
			seconds, err := config.ParseSightingPeriod(value)
			if err != nil {
				return shellRequest{}, err
			}
			return shellRequest{Command: "setting_set", Payload: map[string]interface{}{
				"name": "SETTING_SIGHTING_PERIOD", "value": fmt.Sprintf("%d", seconds),
			}}, nil
		case "zeroconf":
			return shellRequest{Command: "setting_set", Payload: map[string]interface{}{
				"name": "SETTING_ZERO_CONF_PORT", "value": value,
			}}, nil
		case "control":
			return shellRequest{Command: "setting_set", Payload: map[string]interface{}{
				"name": "SETTING_CONTROL_PORT", "value": value,
			}}, nil
		case "name":
			return shellRequest{Command: "setting_set", Payload: map[string]interface{}{
				"name": "SETTING_PORTAL_NAME", "value": value,
			}}, nil
		default:
			return shellRequest{}, fmt.Errorf("unknown setting %q", name)
		}

	default:
		return shellRequest{}, fmt.Errorf("unknown command %q (try 'help')", fields[0])
	}
}

func readerActionRequest(command string, fields []string) (shellRequest, error) {
	if len(fields) < 3 {
		return shellRequest{}, fmt.Errorf("usage: reader %s <nickname>", fields[1])
	}
	return shellRequest{Command: command, Payload: map[string]interface{}{"nickname": fields[2]}}, nil
}

func printHelp() {
	fmt.Println(`reader {add|connect|disconnect|remove|list} ...`)
	fmt.Println(`setting {sightings|zeroconf|control|name} <value>`)
	fmt.Println(`help`)
	fmt.Println(`quit`)
}

func printResponse(resp shellResponse) {
	if !resp.OK {
		fmt.Printf("error: %s\n", resp.Error)
		return
	}
	if len(resp.Data) == 0 {
		fmt.Println("ok")
		return
	}
	fmt.Println(string(resp.Data))
}
