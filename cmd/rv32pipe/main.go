package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/lookbusy1344/rv32pipe/config"
	"github.com/lookbusy1344/rv32pipe/core"
)

func main() {
	var (
		programFile = flag.String("program", "", "Path to a JSON-encoded []core.InstructionSpec program (required)")
		configFile  = flag.String("config", "", "Path to a TOML config file (default: platform config path)")
		maxCycles   = flag.Uint64("max-cycles", 0, "Maximum cycles before halt (0: use config/default)")
		memSize     = flag.Uint("mem-size", 0, "Backing memory size in bytes (0: use config/default)")
		entry       = flag.Uint("entry", 0, "Entry point address")
		verbose     = flag.Bool("verbose", false, "Print per-run statistics")
	)
	flag.Parse()

	if *programFile == "" {
		printHelp()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *maxCycles != 0 {
		cfg.Execution.MaxCycles = *maxCycles
	}
	if *memSize != 0 {
		cfg.Execution.MemorySize = uint32(*memSize) // #nosec G115 -- CLI-bounded memory size
	}
	if *entry != 0 {
		cfg.Execution.EntryPoint = uint32(*entry) // #nosec G115 -- CLI-bounded entry address
	}

	program, err := loadProgram(*programFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	proc := core.NewProcessor(core.ProcessorConfig{
		MemoryBase:        cfg.Execution.MemoryBase,
		MemorySize:        cfg.Execution.MemorySize,
		MaxCycles:         cfg.Execution.MaxCycles,
		TimeScale:         cfg.Execution.TimeScale,
		Mtvec:             cfg.Execution.Mtvec,
		EntryPoint:        cfg.Execution.EntryPoint,
		ForwardingEnabled: cfg.Execution.ForwardingEnabled,
		UARTEnabled:       cfg.Peripherals.UARTEnabled,
		UARTOutput:        os.Stdout,
		CLINTEnabled:      cfg.Peripherals.CLINTEnabled,
	})

	result, err := proc.Execute(program)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("cycles=%d retired=%d stalls=%d bubbles=%d flushes=%d cpi=%.3f ipc=%.3f halted=%v\n",
			result.TotalCycles, len(result.Retired), result.StallCount, result.BubbleCount,
			result.FlushCount, result.CPI, result.IPC, result.Halted)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func loadProgram(path string) ([]core.Instruction, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-specified program path
	if err != nil {
		return nil, fmt.Errorf("reading program file: %w", err)
	}
	var specs []core.InstructionSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parsing program JSON: %w", err)
	}
	program := make([]core.Instruction, len(specs))
	for i, spec := range specs {
		program[i] = core.NewInstruction(spec)
	}
	return program, nil
}

func printHelp() {
	fmt.Print(`rv32pipe - RV32I five-stage pipeline simulator

Usage: rv32pipe -program FILE [options]

Options:
  -program FILE      Path to a JSON-encoded []core.InstructionSpec program (required)
  -config FILE       Path to a TOML config file (default: platform config path)
  -max-cycles N      Maximum cycles before halt (0: use config/default)
  -mem-size N        Backing memory size in bytes (0: use config/default)
  -entry N           Entry point address
  -verbose           Print per-run statistics

Examples:
  rv32pipe -program raw_hazard.json
  rv32pipe -program program.json -max-cycles 5000 -entry 0x8000 -verbose
`)
}
