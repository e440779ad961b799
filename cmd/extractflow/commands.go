package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/extractflow/extract"
	"github.com/BaSui01/extractflow/schema"
	"github.com/BaSui01/extractflow/shape"
	"github.com/BaSui01/extractflow/structure"
	"github.com/BaSui01/extractflow/types"
)

// =============================================================================
// 🧩 extract 命令
// =============================================================================

func runExtract(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	shapePath := fs.String("shape", "", "Shape definition file (YAML or JSON)")
	inputPath := fs.String("input", "-", `Input text file, "-" for stdin`)
	system := fs.String("system", "", "Optional system message")
	mode := fs.String("mode", "", "Extraction mode: tools, json, markdown_json")
	maxAttempts := fs.Int("max-attempts", 0, "Attempts including self-corrections")
	stream := fs.Bool("stream", false, "Print partial values to stderr while streaming")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *shapePath == "" {
		return errors.New("--shape is required")
	}

	input, err := readInput(*inputPath, stdin)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	desc, err := shape.Load(*shapePath, a.factory)
	if err != nil {
		return err
	}

	opts, err := callOptions(*mode, *maxAttempts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgs := buildMessages(*system, input)
	var res *extract.Result
	if *stream || cfg.Extraction.Stream {
		res, err = a.extractor.ExtractStream(ctx, desc, msgs, func(p extract.Partial) {
			if data, merr := structure.MarshalValue(p.Value); merr == nil {
				fmt.Fprintf(stderr, "partial[%d]: %s\n", p.Attempt, data)
			}
		}, opts...)
	} else {
		res, err = a.extractor.Extract(ctx, desc, msgs, opts...)
	}
	if err != nil {
		reportFailure(stderr, err)
		return err
	}

	logger.Debug("extraction finished",
		zap.String("call_id", res.CallID),
		zap.Int("attempts", len(res.Attempts)),
		zap.Int("total_tokens", res.Usage.TotalTokens),
	)
	return writeValue(stdout, res.Value)
}

// =============================================================================
// 📚 batch 命令
// =============================================================================

// batchLine 是 batch 命令每个输入对应的一行输出。
type batchLine struct {
	Input    string          `json:"input"`
	Value    json.RawMessage `json:"value,omitempty"`
	Attempts int             `json:"attempts,omitempty"`
	Error    string          `json:"error,omitempty"`
	Code     string          `json:"code,omitempty"`
}

func runBatch(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	shapePath := fs.String("shape", "", "Shape definition file (YAML or JSON)")
	system := fs.String("system", "", "Optional system message")
	mode := fs.String("mode", "", "Extraction mode: tools, json, markdown_json")
	maxAttempts := fs.Int("max-attempts", 0, "Attempts including self-corrections")
	concurrency := fs.Int("concurrency", 0, "Maximum concurrent extractions")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *shapePath == "" {
		return errors.New("--shape is required")
	}
	inputs := fs.Args()
	if len(inputs) == 0 {
		return errors.New("at least one input file is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	desc, err := shape.Load(*shapePath, a.factory)
	if err != nil {
		return err
	}
	opts, err := callOptions(*mode, *maxAttempts)
	if err != nil {
		return err
	}

	items := make([]extract.BatchItem, len(inputs))
	for i, path := range inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read input %s: %w", path, err)
		}
		items[i] = extract.BatchItem{
			Shape:    desc,
			Messages: buildMessages(*system, string(data)),
			Options:  opts,
		}
	}

	limit := *concurrency
	if limit <= 0 {
		limit = cfg.Extraction.BatchConcurrency
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := a.extractor.ExtractBatch(ctx, items, limit)
	enc := json.NewEncoder(stdout)
	failed := 0
	for i, r := range results {
		line := batchLine{Input: inputs[i]}
		if r.Err != nil {
			failed++
			line.Error = r.Err.Error()
			line.Code = string(types.GetErrorCode(r.Err))
		} else {
			data, err := structure.MarshalValue(r.Result.Value)
			if err != nil {
				return err
			}
			line.Value = json.RawMessage(data)
			line.Attempts = len(r.Result.Attempts)
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d extractions failed", failed, len(results))
	}
	return nil
}

// =============================================================================
// 📐 schema 命令
// =============================================================================

func runSchema(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	fs.SetOutput(stderr)
	shapePath := fs.String("shape", "", "Shape definition file (YAML or JSON)")
	tool := fs.Bool("tool", false, "Print the tool definition")
	toolName := fs.String("tool-name", extract.DefaultToolName, "Tool name used with --tool")
	refs := fs.Bool("refs", false, "Emit nested objects as references")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *shapePath == "" {
		return errors.New("--shape is required")
	}

	f := schema.NewFactory(schema.WithObjectReferences(*refs))
	desc, err := shape.Load(*shapePath, f)
	if err != nil {
		return err
	}
	s, err := f.Schema(desc)
	if err != nil {
		return err
	}

	var out any
	if *tool {
		out, err = schema.ToToolSchema(*toolName, desc.Description(), s, f)
	} else {
		out, err = schema.Render(s, f)
	}
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func readInput(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("input is empty")
	}
	return text, nil
}

func buildMessages(system, input string) []types.Message {
	msgs := make([]types.Message, 0, 2)
	if system != "" {
		msgs = append(msgs, types.NewSystemMessage(system))
	}
	return append(msgs, types.NewUserMessage(input))
}

func callOptions(mode string, maxAttempts int) ([]extract.CallOption, error) {
	var opts []extract.CallOption
	if mode != "" {
		m, err := extract.ParseMode(mode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, extract.WithCallMode(m))
	}
	if maxAttempts > 0 {
		opts = append(opts, extract.WithCallMaxAttempts(maxAttempts))
	}
	return opts, nil
}

func writeValue(w io.Writer, v any) error {
	data, err := structure.MarshalValue(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(data), "", "  "); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, buf.String())
	return err
}

// reportFailure 打印每次尝试的校验信息，便于排查模型输出。
func reportFailure(w io.Writer, err error) {
	var exhausted *extract.RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		return
	}
	fmt.Fprintf(w, "extraction failed after %d attempt(s)\n", exhausted.Attempts)
	for _, msg := range exhausted.Messages {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
}
