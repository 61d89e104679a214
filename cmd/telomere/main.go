// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/telomere-project/telomere"
)

func fatalf(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage:
  telomere compress   [flags] [input] [output]
  telomere decompress [flags] [input] [output]

subcommand aliases: c, d
flags:
  -input PATH      input file (or first positional argument)
  -output PATH     output file (or second positional argument)
  -block-size N    partition block size in bytes (default 3)
  -passes N        maximum compression passes (default 10)
  -max-seed-len N  maximum seed byte length (default 3)
  -status          emit human-readable progress lines
  -json            emit a single JSON summary on completion
  -dry-run         run compression but do not write the output
  -force           overwrite an existing output file
`)
	os.Exit(2)
}

type options struct {
	input      string
	output     string
	blockSize  int
	passes     int
	maxSeedLen int
	status     bool
	jsonOut    bool
	dryRun     bool
	force      bool
}

func parseOptions(args []string) options {
	var o options
	fs := flag.NewFlagSet("telomere", flag.ExitOnError)
	fs.StringVar(&o.input, "input", "", "input path")
	fs.StringVar(&o.output, "output", "", "output path")
	fs.IntVar(&o.blockSize, "block-size", 3, "block size in bytes")
	fs.IntVar(&o.passes, "passes", telomere.DefaultPasses, "maximum passes")
	fs.IntVar(&o.maxSeedLen, "max-seed-len", 3, "maximum seed byte length")
	fs.BoolVar(&o.status, "status", false, "emit progress lines")
	fs.BoolVar(&o.jsonOut, "json", false, "emit a JSON summary")
	fs.BoolVar(&o.dryRun, "dry-run", false, "do not write the output")
	fs.BoolVar(&o.force, "force", false, "overwrite existing output")
	fs.Usage = usage
	fs.Parse(args)

	rest := fs.Args()
	if o.input == "" && len(rest) > 0 {
		o.input = rest[0]
		rest = rest[1:]
	}
	if o.output == "" && len(rest) > 0 {
		o.output = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 {
		fatalf("unexpected argument %q", rest[0])
	}
	if o.input == "" {
		fatalf("no input path given")
	}
	return o
}

func writeOutput(o options, data []byte) {
	if o.dryRun {
		return
	}
	if o.output == "" {
		fatalf("no output path given")
	}
	if !o.force {
		if _, err := os.Stat(o.output); err == nil {
			fatalf("%s exists; pass -force to overwrite", o.output)
		}
	}
	if err := os.WriteFile(o.output, data, 0644); err != nil {
		fatalf("writing %s: %s", o.output, err)
	}
}

type jsonSummary struct {
	Command    string `json:"command"`
	Input      string `json:"input"`
	Output     string `json:"output,omitempty"`
	InputLen   int    `json:"input_len"`
	OutputLen  int    `json:"output_len"`
	Passes     int    `json:"passes,omitempty"`
	DryRun     bool   `json:"dry_run,omitempty"`
	LiteralSum int    `json:"literal_spans,omitempty"`
	SeedSum    int    `json:"seed_spans,omitempty"`
}

func runCompress(o options) {
	src, err := os.ReadFile(o.input)
	if err != nil {
		fatalf("reading %s: %s", o.input, err)
	}
	cfg := telomere.DefaultConfig()
	cfg.BlockSize = o.blockSize
	cfg.Passes = o.passes
	cfg.MaxSeedLen = o.maxSeedLen
	if o.status {
		cfg.Diag = func(line string) { fmt.Fprintln(os.Stderr, line) }
	}
	out, sum, err := telomere.Compress(context.Background(), src, cfg)
	if err != nil {
		fatalf("compress: %s", err)
	}
	if o.status {
		for p, st := range sum.PassStats {
			fmt.Fprintf(os.Stderr, "pass %d: %d literal + %d seed spans, %d -> %d bytes\n",
				p+1, st.LiteralSpans, st.SeedSpans, st.InputLen, st.OutputLen)
			for _, b := range sum.ChangedBlocks[p] {
				fmt.Fprintf(os.Stderr, "pass %d: block %d reassigned\n", p+1, b)
			}
		}
	}
	writeOutput(o, out)
	if o.jsonOut {
		js := jsonSummary{
			Command:   "compress",
			Input:     o.input,
			Output:    o.output,
			InputLen:  sum.InputLen,
			OutputLen: sum.OutputLen,
			Passes:    sum.Passes,
			DryRun:    o.dryRun,
		}
		for _, st := range sum.PassStats {
			js.LiteralSum += st.LiteralSpans
			js.SeedSum += st.SeedSpans
		}
		enc := json.NewEncoder(os.Stdout)
		enc.Encode(js)
	}
}

func runDecompress(o options) {
	src, err := os.ReadFile(o.input)
	if err != nil {
		fatalf("reading %s: %s", o.input, err)
	}
	out, err := telomere.Decompress(src)
	if err != nil {
		fatalf("decompress: %s", err)
	}
	writeOutput(o, out)
	if o.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.Encode(jsonSummary{
			Command:   "decompress",
			Input:     o.input,
			Output:    o.output,
			InputLen:  len(src),
			OutputLen: len(out),
			DryRun:    o.dryRun,
		})
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "compress", "c":
		runCompress(parseOptions(os.Args[2:]))
	case "decompress", "d":
		runDecompress(parseOptions(os.Args[2:]))
	default:
		fatalf("unknown subcommand %q (want compress or decompress)", os.Args[1])
	}
}
