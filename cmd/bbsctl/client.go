package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// client talks to the board server and the embedding provider.
type client struct {
	baseURL     string
	fingerprint string
	http        *http.Client

	embedClient *openai.Client
	embedModel  openai.EmbeddingModel
	embedDim    int
}

func newClientFromEnv() *client {
	baseURL := os.Getenv("BBS_ADDR")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	dim := 384
	if v := os.Getenv("EMBED_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			dim = n
		}
	}

	c := &client{
		baseURL:     baseURL,
		fingerprint: os.Getenv("BBS_IDENTITY"),
		http:        &http.Client{Timeout: 30 * time.Second},
		embedModel:  openai.EmbeddingModel(os.Getenv("EMBED_MODEL")),
		embedDim:    dim,
	}

	if key := os.Getenv("EMBED_API_KEY"); key != "" {
		cfg := openai.DefaultConfig(key)
		if base := os.Getenv("EMBED_BASE_URL"); base != "" {
			cfg.BaseURL = base
		}
		c.embedClient = openai.NewClientWithConfig(cfg)
	}
	return c
}

// embed vectorizes text through the OpenAI-compatible endpoint.
func (c *client) embed(text string) ([]float32, error) {
	if c.embedClient == nil {
		return nil, fmt.Errorf("EMBED_API_KEY is not set; cannot compute embeddings")
	}

	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          c.embedModel,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if c.embedDim > 0 {
		req.Dimensions = c.embedDim
	}

	resp, err := c.embedClient.CreateEmbeddings(context.Background(), req)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embed: empty response")
	}
	return resp.Data[0].Embedding, nil
}

func (c *client) register(name string) error {
	return c.call(http.MethodPost, "/identity/register",
		map[string]string{"display_name": name})
}

func (c *client) createPost(content string, vec []float32, tags []string, parent string, force bool) error {
	return c.call(http.MethodPost, "/posts", map[string]any{
		"content":   content,
		"vector":    vec,
		"hashtags":  tags,
		"parent_id": parent,
		"force":     force,
	})
}

func (c *client) listPosts(tag string, offset, limit int) error {
	return c.call(http.MethodGet, fmt.Sprintf("/posts?hashtag=%s&offset=%d&limit=%d",
		tag, offset, limit), nil)
}

func (c *client) getPost(id string) error {
	return c.call(http.MethodGet, "/posts/"+id, nil)
}

func (c *client) appendToPost(id, content string) error {
	return c.call(http.MethodPost, "/posts/"+id+"/append",
		map[string]string{"content": content})
}

func (c *client) likePost(id string) error {
	return c.call(http.MethodPost, "/posts/"+id+"/like", nil)
}

func (c *client) searchPosts(vec []float32, tags []string, algorithm string, offset, limit int) error {
	return c.call(http.MethodPost, "/search", map[string]any{
		"vector":    vec,
		"hashtags":  tags,
		"algorithm": algorithm,
		"offset":    offset,
		"limit":     limit,
	})
}

func (c *client) feed(tag, algorithm string, offset, limit int) error {
	return c.call(http.MethodGet, fmt.Sprintf("/feed?hashtag=%s&algorithm=%s&offset=%d&limit=%d",
		tag, algorithm, offset, limit), nil)
}

func (c *client) notifications() error {
	return c.call(http.MethodGet, "/notifications", nil)
}

func (c *client) markRead() error {
	return c.call(http.MethodPost, "/notifications/read", nil)
}

// call performs one request and pretty-prints the JSON response. The unread
// notification count header is surfaced when present.
func (c *client) call(method, path string, body any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequest(method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.fingerprint != "" {
		req.Header.Set("X-BBS-Identity", c.fingerprint)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if unread := resp.Header.Get("X-BBS-Notifications"); unread != "" && unread != "0" {
		fmt.Fprintf(os.Stderr, "(%s unread notifications)\n", unread)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if len(data) > 0 {
		var pretty bytes.Buffer
		if json.Indent(&pretty, data, "", "  ") == nil {
			fmt.Println(pretty.String())
		} else {
			fmt.Println(string(data))
		}
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return nil
}
