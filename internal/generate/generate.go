// Package generate drafts SQL from natural language with a hosted model.
//
// The model is given the compiled Lark grammar as a decoding constraint on a
// custom tool and is forced to call that tool, so its answer is normally
// already inside the language. The answer is still untrusted: Generate runs
// it through the validator before returning it.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/leapstack-labs/sqlfence/pkg/grammar"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/responses"
	"github.com/openai/openai-go/v2/shared"
)

// Generation errors.
var (
	ErrEmptyPrompt   = errors.New("prompt is required")
	ErrNotConfigured = errors.New("generator is not configured: api_key is required")
	ErrNoToolCall    = errors.New("no custom tool call was returned")
)

// maxErrorBody caps how much of an upstream error body is kept.
const maxErrorBody = 4096

// UpstreamError is a non-2xx answer from the model API.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("model API error (%d): %s", e.StatusCode, e.Message)
}

// Draft is what the model produced for one prompt. SQL is always the raw tool
// input; Query is set only when SQL passed validation.
type Draft struct {
	SQL   string
	Query grammar.Query
}

// Generator turns a prompt into a validated query.
type Generator interface {
	Generate(ctx context.Context, prompt string) (Draft, error)
}

// Client calls the OpenAI Responses API.
type Client struct {
	cfg          Config
	compiled     *grammar.Compiled
	instructions string
	http         *http.Client
	api          openai.Client
	logger       *slog.Logger
}

var _ Generator = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client whose tool is constrained by compiled.
func New(cfg Config, compiled *grammar.Compiled, logger *slog.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if compiled == nil {
		return nil, fmt.Errorf("generator requires a compiled grammar")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cfg = cfg.withDefaults()
	c := &Client{
		cfg:          cfg,
		compiled:     compiled,
		instructions: Instructions(compiled),
		http:         &http.Client{Timeout: cfg.Timeout},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.api = openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(c.http),
		option.WithMaxRetries(0),
		option.WithMiddleware(upstreamErrors),
	)
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Generate asks the model for a query answering prompt. When the model's
// answer fails validation the returned Draft still carries the raw SQL and
// the error is the validator's *grammar.Rejection.
func (c *Client) Generate(ctx context.Context, prompt string) (Draft, error) {
	text := strings.TrimSpace(prompt)
	if text == "" {
		return Draft{}, ErrEmptyPrompt
	}

	resp, err := c.api.Responses.New(ctx, c.request(text))
	if err != nil {
		return Draft{}, c.callError(ctx, err)
	}

	sql, err := c.extractSQL(resp)
	if err != nil {
		return Draft{}, err
	}

	q, err := c.compiled.Validate(sql)
	if err != nil {
		c.logger.Warn("model output rejected by validator",
			slog.String("model", c.cfg.Model),
			slog.String("sql", sql))
		return Draft{SQL: sql}, err
	}

	c.logger.Info("generated SQL via grammar-constrained tool",
		slog.String("tool", c.cfg.ToolName),
		slog.String("model", c.cfg.Model))
	return Draft{SQL: sql, Query: q}, nil
}

func (c *Client) request(prompt string) responses.ResponseNewParams {
	s := c.compiled.Schema()
	return responses.ResponseNewParams{
		Model:        shared.ResponsesModel(c.cfg.Model),
		Input:        responses.ResponseNewParamsInputUnion{OfString: openai.String(prompt)},
		Instructions: openai.String(c.instructions),
		Tools: []responses.ToolUnionParam{{
			OfCustom: &responses.CustomToolParam{
				Name:        c.cfg.ToolName,
				Description: openai.String(fmt.Sprintf("Generate a single SELECT statement for %s.", s.Qualified())),
				Format: shared.CustomToolInputFormatUnionParam{
					OfGrammar: &shared.CustomToolInputFormatGrammarParam{
						Syntax:     "lark",
						Definition: c.compiled.Text(),
					},
				},
			},
		}},
		ToolChoice: responses.ResponseNewParamsToolChoiceUnion{
			OfCustomTool: &responses.ToolChoiceCustomParam{Name: c.cfg.ToolName},
		},
		Temperature:     openai.Float(0),
		MaxOutputTokens: openai.Int(int64(c.cfg.MaxOutputTokens)),
	}
}

func (c *Client) callError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("failed to call model API: %w", ctxErr)
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		c.logger.Error("model API returned an error",
			slog.Int("status", upstream.StatusCode),
			slog.String("message", upstream.Message))
		return upstream
	}
	c.logger.Error("model API call failed", slog.String("error", err.Error()))
	return fmt.Errorf("failed to call model API: %w", err)
}

// extractSQL accepts only the constrained tool call; free text is ignored.
func (c *Client) extractSQL(resp *responses.Response) (string, error) {
	for _, item := range resp.Output {
		if item.Type != "custom_tool_call" {
			continue
		}
		if call := item.AsCustomToolCall(); call.Name == c.cfg.ToolName {
			return call.Input, nil
		}
	}
	return "", ErrNoToolCall
}

// upstreamErrors turns a non-2xx answer into an *UpstreamError carrying the
// API's own message, whatever the shape of the body.
func upstreamErrors(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	res, err := next(req)
	if err != nil || (res.StatusCode >= 200 && res.StatusCode <= 299) {
		return res, err
	}
	defer func() { _ = res.Body.Close() }()
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	return nil, &UpstreamError{StatusCode: res.StatusCode, Message: errorMessage(raw)}
}

// apiError is the error envelope of the OpenAI API.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorMessage(raw []byte) string {
	var ae apiError
	if err := json.Unmarshal(raw, &ae); err == nil && ae.Error.Message != "" {
		return ae.Error.Message
	}
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	return strings.TrimSpace(string(raw))
}
