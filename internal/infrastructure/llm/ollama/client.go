package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ayoubray/tdrassist/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, genModel, embedModel string, exec *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		exec:       exec,
	}
}

// Embedder fans texts out over a bounded worker pool. The embedding endpoint
// takes one prompt per call, so a batch is N calls; results land positionally
// so output order always matches input order.
type Embedder struct {
	client      *Client
	concurrency int
	limiter     *rate.Limiter
}

func NewEmbedder(client *Client, concurrency int, ratePerSec float64) *Embedder {
	if concurrency <= 0 {
		concurrency = 1
	}
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), concurrency)
	}
	return &Embedder{client: client, concurrency: concurrency, limiter: limiter}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			if e.limiter != nil {
				if err := e.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			vector, err := e.client.embedOne(gctx, text)
			if err != nil {
				return err
			}
			out[i] = vector
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.client.embedOne(ctx, text)
}

func (c *Client) embedOne(ctx context.Context, text string) ([]float32, error) {
	// The endpoint rejects empty prompts; a single space embeds to a neutral
	// vector and keeps positions aligned.
	if strings.TrimSpace(text) == "" {
		text = " "
	}
	reqBody := map[string]any{
		"model":  c.embedModel,
		"prompt": text,
	}

	var resp struct {
		Embedding []float32 `json:"embedding"`
	}
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/embeddings", reqBody, &resp, "embed")
	}
	var err error
	if c.exec != nil {
		err = c.exec.Execute(ctx, "ollama.embed", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ollama.embed", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return resp.Embedding, nil
}

// Generator invokes the generative model with bounded output and low
// temperature; answer determinism matters more than flair here.
type Generator struct {
	client      *Client
	temperature float64
	numPredict  int
}

func NewGenerator(client *Client, temperature float64, numPredict int) *Generator {
	return &Generator{client: client, temperature: temperature, numPredict: numPredict}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":      g.client.genModel,
		"prompt":     prompt,
		"stream":     false,
		"keep_alive": "10m",
		"options": map[string]any{
			"temperature": g.temperature,
			"num_predict": g.numPredict,
		},
	}

	var resp struct {
		Response string `json:"response"`
	}
	call := func(ctx context.Context) error {
		return g.client.postJSON(ctx, "/api/generate", reqBody, &resp, "generate")
	}
	var err error
	if g.client.exec != nil {
		err = g.client.exec.Execute(ctx, "ollama.generate", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama.generate", err)
	}
	return strings.TrimSpace(resp.Response), nil
}
