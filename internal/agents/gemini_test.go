package agents

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

func okResponse() *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"outcome":"ok"}`)}}},
	}}
}

// TestRetryGenerate tests which Gemini failures are retried
func TestRetryGenerate(t *testing.T) {
	tests := []struct {
		name      string
		tries     uint
		first     error
		wantCalls int
		wantErr   bool
	}{
		{"unavailable", 2, &googleapi.Error{Code: http.StatusServiceUnavailable}, 2, false},
		{"rate limited", 2, &googleapi.Error{Code: http.StatusTooManyRequests}, 2, false},
		{"network", 2, errors.New("connection reset by peer"), 2, false},
		{"bad request", 2, &googleapi.Error{Code: http.StatusBadRequest}, 1, true},
		{"single try", 1, &googleapi.Error{Code: http.StatusServiceUnavailable}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			resp, err := retryGenerate(context.Background(), tt.tries, func(context.Context) (*genai.GenerateContentResponse, error) {
				calls++
				if calls == 1 {
					return nil, tt.first
				}
				return okResponse(), nil
			})
			if calls != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, calls)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				if !errors.Is(err, tt.first) {
					t.Errorf("Expected the API error back, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Failed to generate: %v", err)
			}
			if resp == nil || len(resp.Candidates) != 1 {
				t.Errorf("Expected the second response, got %+v", resp)
			}
		})
	}
}

// TestRetryGenerateCancelled tests that a cancelled context is not retried
func TestRetryGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retryGenerate(ctx, 3, func(context.Context) (*genai.GenerateContentResponse, error) {
		calls++
		cancel()
		return nil, &googleapi.Error{Code: http.StatusServiceUnavailable}
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

// TestToGenaiSchema tests the JSON schema conversion used for Gemini structured output
func TestToGenaiSchema(t *testing.T) {
	s := toGenaiSchema(DMSchema(false))
	if s.Type != genai.TypeObject {
		t.Fatalf("Expected object, got %v", s.Type)
	}
	if len(s.Required) != 1 || s.Required[0] != "outcome" {
		t.Errorf("Expected outcome required, got %v", s.Required)
	}
	if _, ok := s.Properties["proactiveEvent"]; ok {
		t.Error("Expected no proactiveEvent without events")
	}
	if _, ok := s.Properties["eventOptions"]; ok {
		t.Error("Expected no eventOptions without events")
	}

	tests := []struct {
		name string
		prop string
		want genai.Type
	}{
		{"string", "outcome", genai.TypeString},
		{"boolean", "statAdjustment", genai.TypeBoolean},
		{"integer", "experienceGained", genai.TypeInteger},
		{"array", "inventoryChanges", genai.TypeArray},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := s.Properties[tt.prop]
			if !ok {
				t.Fatalf("Missing property %s", tt.prop)
			}
			if p.Type != tt.want {
				t.Errorf("Expected %v for %s, got %v", tt.want, tt.prop, p.Type)
			}
		})
	}

	stat := s.Properties["statToAdjust"]
	if stat.Format != "enum" || len(stat.Enum) == 0 {
		t.Errorf("Expected enum format with values, got %q %v", stat.Format, stat.Enum)
	}

	items := s.Properties["inventoryChanges"].Items
	if items == nil || items.Type != genai.TypeObject {
		t.Fatalf("Expected object items, got %+v", items)
	}
	if items.Properties["quantityChange"].Type != genai.TypeInteger {
		t.Errorf("Expected integer quantityChange, got %v", items.Properties["quantityChange"].Type)
	}
	if len(items.Required) != 2 || items.Required[0] != "name" || items.Required[1] != "quantityChange" {
		t.Errorf("Unexpected item required fields %v", items.Required)
	}

	withEvents := toGenaiSchema(DMSchema(true))
	if withEvents.Properties["proactiveEvent"] == nil {
		t.Error("Expected proactiveEvent with events")
	}
	opts := withEvents.Properties["eventOptions"]
	if opts == nil || opts.Type != genai.TypeArray || opts.Items == nil || opts.Items.Type != genai.TypeString {
		t.Errorf("Expected string array eventOptions, got %+v", opts)
	}

	if toGenaiSchema(nil) != nil {
		t.Error("Expected nil schema for nil input")
	}
}
