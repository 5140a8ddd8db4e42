package skills

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lumen-ai/conductor/internal/registry"
	"github.com/lumen-ai/conductor/pkg/models"
)

const maxFetchBytes = 512 * 1024

// webFetchSkill fetches the url key and stores the body under
// fetched_content. The descriptor marks this skill as requiring vetting,
// so respond will not fold the body into generation until a vetter
// approves it.
func webFetchSkill(client *http.Client) registry.SkillFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, uif *models.ExecutionContext) error {
		raw, ok := stringKey(uif, KeyURL)
		if !ok || strings.TrimSpace(raw) == "" {
			return fmt.Errorf("no url to fetch")
		}

		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse url %q: %w", raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("unsupported scheme %q", u.Scheme)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", "conductor/1.0")

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", u, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("fetch %s: status %s", u, resp.Status)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
		if err != nil {
			return fmt.Errorf("read body from %s: %w", u, err)
		}

		uif.Set(KeyFetchedContent, string(body))
		uif.Log("web-fetch", "fetched %d bytes from %s", len(body), u)
		return nil
	}
}
