// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Endpoint is one OpenAI-compatible service and the model it serves.
type Endpoint struct {
	Host  string
	Model string
}

// Config describes the services behind ingestion and vector retrieval. The
// config package builds it from the ai section of sibyl.yaml.
type Config struct {
	Embedding  Endpoint
	Extraction Endpoint
	// APIKey is sent as a bearer token to both endpoints.
	APIKey string
	// MinConfidence drops extracted items scoring below it.
	MinConfidence float64
}

// Validate puts hosts in OpenAI base URL form and reports every missing or
// out of range field.
func (c *Config) Validate() error {
	var errs []error
	for _, ep := range []struct {
		name string
		*Endpoint
	}{{"embedding", &c.Embedding}, {"extraction", &c.Extraction}} {
		ep.Host = apiBase(ep.Host)
		if ep.Host == "" {
			errs = append(errs, fmt.Errorf("ai config: %s host is required", ep.name))
		}
		if ep.Model == "" {
			errs = append(errs, fmt.Errorf("ai config: %s model is required", ep.name))
		}
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		errs = append(errs, errors.New("ai config: min confidence must be between 0 and 1"))
	}
	return errors.Join(errs...)
}

// apiBase appends the /v1 path OpenAI-compatible servers (Ollama, vLLM,
// LocalAI) serve under.
func apiBase(host string) string {
	host = strings.TrimSuffix(strings.TrimSpace(host), "/")
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return host + "/v1"
}
