// fake_helper.go simulates the LhmHelper --daemon protocol for tests.
//
// Behavior is controlled by the FAKE_HELPER_MODE env var:
//
//	"normal"    - Respond to each stdin line with a hardware tree (default)
//	"crash"     - Respond once then exit on the next request
//	"slow"      - Read stdin but never respond
//	"error"     - Respond with an error document
//	"open_fail" - Write an error document immediately and exit
//
// When FAKE_HELPER_ARGS_FILE is set, the command line arguments are written
// to that file on startup.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type document struct {
	Hardware []hw   `json:"Hardware"`
	Error    string `json:"error,omitempty"`
}

type hw struct {
	Name        string   `json:"Name"`
	Type        string   `json:"Type"`
	Sensors     []sensor `json:"Sensors"`
	SubHardware []hw     `json:"SubHardware"`
}

type sensor struct {
	Name  string   `json:"Name"`
	Type  string   `json:"Type"`
	Value *float32 `json:"Value"`
}

func f32(v float32) *float32 { return &v }

func main() {
	if path := os.Getenv("FAKE_HELPER_ARGS_FILE"); path != "" {
		_ = os.WriteFile(path, []byte(strings.Join(os.Args[1:], " ")), 0644)
	}

	mode := os.Getenv("FAKE_HELPER_MODE")
	if mode == "" {
		mode = "normal"
	}

	switch mode {
	case "open_fail":
		b, _ := json.Marshal(document{Error: "computer.Open() failed: PawnIO driver not found"})
		fmt.Println(string(b))
		os.Exit(1)
	case "slow":
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
		}
		os.Exit(0)
	}

	sample := document{
		Hardware: []hw{
			{
				Name: "Intel Core i7-9700",
				Type: "Cpu",
				Sensors: []sensor{
					{Name: "CPU Package", Type: "Temperature", Value: f32(65.5)},
					{Name: "CPU Total", Type: "Load", Value: f32(12)},
				},
			},
			{
				Name:    "NVIDIA GeForce GTX 1660",
				Type:    "GpuNvidia",
				Sensors: []sensor{{Name: "GPU Core", Type: "Temperature", Value: f32(50)}},
			},
			{
				Name: "ASUS PRIME Z390-A",
				Type: "Motherboard",
				SubHardware: []hw{
					{
						Name:    "Nuvoton NCT6798D",
						Type:    "SuperIO",
						Sensors: []sensor{{Name: "CPU Core", Type: "Temperature", Value: nil}},
					},
				},
			},
		},
	}

	scanner := bufio.NewScanner(os.Stdin)
	requests := 0
	for scanner.Scan() {
		requests++
		switch mode {
		case "normal":
			b, _ := json.Marshal(sample)
			fmt.Println(string(b))
		case "crash":
			if requests >= 2 {
				os.Exit(1)
			}
			b, _ := json.Marshal(sample)
			fmt.Println(string(b))
		case "error":
			b, _ := json.Marshal(document{Error: "sensor read failed"})
			fmt.Println(string(b))
		}
	}
}
