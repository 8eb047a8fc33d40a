package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// doJSON sends req and decodes a 2xx JSON body into out. Error bodies are
// reduced to their "error" or "detail" field when they carry one.
func doJSON(client *http.Client, req *http.Request, service string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s API: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if readErr != nil {
			return fmt.Errorf("read %s error body: %w", service, readErr)
		}
		if msg := apiErrorMessage(data); msg != "" {
			return fmt.Errorf("%s API error (%s): %s", service, resp.Status, msg)
		}
		return fmt.Errorf("%s API returned status %s", service, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", service, err)
	}
	return nil
}

func apiErrorMessage(data []byte) string {
	var body struct {
		Error  any    `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		switch v := body.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
		if body.Detail != "" {
			return body.Detail
		}
	}
	return strings.TrimSpace(string(data))
}
