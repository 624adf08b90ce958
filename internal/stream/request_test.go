// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/model"
)

func TestBuildRequest_TurnSentOnce(t *testing.T) {
	history := []model.Message{
		*model.NewUserMessage("first"),
		*model.NewAssistantMessage("reply"),
		*model.NewErrorMessage("boom"),
		*model.NewAssistantMessage("   "),
	}
	turn := *model.NewUserMessage("second")

	req := BuildRequest(history, turn, RequestOptions{
		Model:               "m",
		SystemPrompt:        "be brief",
		MaxCompletionTokens: 4000,
		Temperature:         0.7,
	})

	require.Len(t, req.Messages, 4)
	assert.Equal(t, cloud.TextMessage("system", "be brief"), req.Messages[0])
	assert.Equal(t, cloud.TextMessage("user", "first"), req.Messages[1])
	assert.Equal(t, cloud.TextMessage("assistant", "reply"), req.Messages[2])
	assert.Equal(t, cloud.TextMessage("user", "second"), req.Messages[3])

	assert.True(t, req.Stream)
	assert.Equal(t, 4000, req.MaxCompletionTokens)
	require.NotNil(t, req.VeniceParameters)
	assert.False(t, req.VeniceParameters.IncludeVeniceSystemPrompt)
	assert.Empty(t, req.WebSearch)
}

func TestBuildRequest_NoSystemPrompt(t *testing.T) {
	req := BuildRequest(nil, *model.NewUserMessage("hi"), RequestOptions{Model: "m", SystemPrompt: "  "})
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
}

func TestBuildRequest_WebSearch(t *testing.T) {
	req := BuildRequest(nil, *model.NewUserMessage("news?"), RequestOptions{Model: "m", WebSearch: true})

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"model": "m",
		"messages": [{"role": "user", "content": "news?"}],
		"temperature": 0,
		"stream": true,
		"web_search": "on",
		"venice_parameters": {
			"include_venice_system_prompt": false,
			"enable_web_search": "on",
			"enable_web_citations": true,
			"include_search_results_in_stream": true
		}
	}`, string(data))
}

func TestBuildRequest_ImagesKeepParts(t *testing.T) {
	turn := *model.NewUserMessage("what is this?")
	turn.Parts = []model.ContentPart{model.ImagePart("data:image/png;base64,AAAA")}

	req := BuildRequest(nil, turn, RequestOptions{Model: "m"})
	require.Len(t, req.Messages, 1)

	parts, ok := req.Messages[0].Content.([]model.ContentPart)
	require.True(t, ok)
	require.Len(t, parts, 2)
	assert.Equal(t, model.TextPart("what is this?"), parts[0])
	assert.Equal(t, model.PartImageURL, parts[1].Type)
}

func TestBuildRequest_HistoryImagesFlattened(t *testing.T) {
	prev := model.Message{Role: model.RoleUser, Parts: []model.ContentPart{model.TextPart("look"), model.ImagePart("data:x")}}

	req := BuildRequest([]model.Message{prev}, *model.NewUserMessage("and?"), RequestOptions{Model: "m"})
	require.Len(t, req.Messages, 2)
	assert.Equal(t, cloud.TextMessage("user", "look"), req.Messages[0])
}
