package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"chatproxy/internal/config"
)

const probeUsage = `Usage:
  chatproxy probe --platform <id> --model <model> [flags]

Selects the proxy base URL from ENV (development or production) and streams a
completion through /<platform>/chat/completions.

Flags:
  --platform     string    Platform identifier to route through (required)
  --model        string    Upstream model name (required)
  --prompt       string    Prompt to send (default "Count from 1 to 5")
  --api-key-env  string    Variable holding the platform key (default <PLATFORM>_API_KEY)
  --env-file     string    Dotenv file loaded first (default ".env")
  --expect-count bool      Require the digits 1 through 5 in the reply
  --timeout      duration  Overall deadline (default 60s)`

func probe(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, probeUsage)
	}

	var (
		platformID  string
		model       string
		prompt      string
		apiKeyEnv   string
		envFile     string
		expectCount bool
		timeout     time.Duration
	)
	fs.StringVar(&platformID, "platform", "", "platform identifier")
	fs.StringVar(&model, "model", "", "model name")
	fs.StringVar(&prompt, "prompt", "Count from 1 to 5", "prompt to send")
	fs.StringVar(&apiKeyEnv, "api-key-env", "", "environment variable holding the api key")
	fs.StringVar(&envFile, "env-file", ".env", "dotenv file to load")
	fs.BoolVar(&expectCount, "expect-count", false, "require digits 1..5 in the reply")
	fs.DurationVar(&timeout, "timeout", 60*time.Second, "overall deadline")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse probe flags: %w", err)
	}

	if platformID == "" || model == "" {
		return errors.New("probe command requires --platform and --model")
	}

	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
	}

	env, err := config.ParseEnv()
	if err != nil {
		return err
	}
	baseURL, err := env.BaseURL()
	if err != nil {
		return err
	}

	if apiKeyEnv == "" {
		apiKeyEnv = strings.ToUpper(platformID) + "_API_KEY"
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return fmt.Errorf("environment variable %s must hold the %s api key", apiKeyEnv, platformID)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = baseURL + "/" + platformID
	client := openai.NewClientWithConfig(clientCfg)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	fmt.Fprintf(out, "probing %s via %s\n", platformID, clientCfg.BaseURL)

	stream, err := client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	var content strings.Builder
	chunks := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("receive chunk %d: %w", chunks+1, err)
		}
		chunks++
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		content.WriteString(delta)
		fmt.Fprintf(out, "chunk: %q\n", delta)
	}

	full := content.String()
	fmt.Fprintf(out, "full content (%d chunks): %s\n", chunks, full)

	if full == "" {
		return fmt.Errorf("received empty content from platform %s", platformID)
	}
	if expectCount {
		for i := 1; i <= 5; i++ {
			if !strings.Contains(full, strconv.Itoa(i)) {
				return fmt.Errorf("expected %d in content, but it is missing: %s", i, full)
			}
		}
	}
	return nil
}
