package insight

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyperengineering/portfolio/internal/types"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantMsg  string
		wantRecs []string
	}{
		{
			name:     "bare_object",
			text:     `{"message":"On track","recommendations":["Ship it"]}`,
			wantMsg:  "On track",
			wantRecs: []string{"Ship it"},
		},
		{
			name:     "surrounded_by_prose",
			text:     "Sure! Here you go:\n```json\n{\"message\":\"Busy month\",\"recommendations\":[\"a\",\"b\"]}\n```\nGood luck.",
			wantMsg:  "Busy month",
			wantRecs: []string{"a", "b"},
		},
		{
			name:     "truncates_recommendations",
			text:     `{"message":"m","recommendations":["1","2","3","4","5"]}`,
			wantMsg:  "m",
			wantRecs: []string{"1", "2", "3"},
		},
		{
			name:     "braces_inside_strings",
			text:     `note {"message":"use {braces} carefully","recommendations":["}"]} end`,
			wantMsg:  "use {braces} carefully",
			wantRecs: []string{"}"},
		},
		{
			name:     "skips_malformed_first_object",
			text:     `{not json} then {"message":"second","recommendations":[]}`,
			wantMsg:  "second",
			wantRecs: []string{},
		},
		{
			name:     "empty_message_accepted",
			text:     `{"message":"","recommendations":["x"]}`,
			wantMsg:  "",
			wantRecs: []string{"x"},
		},
		{
			name:     "message_not_string",
			text:     `{"message":42,"recommendations":[]}`,
			wantMsg:  `{"message":42,"recommendations":[]}`,
			wantRecs: []string{},
		},
		{
			name:     "recommendations_not_array",
			text:     `{"message":"m","recommendations":"do it"}`,
			wantMsg:  `{"message":"m","recommendations":"do it"}`,
			wantRecs: []string{},
		},
		{
			name:     "recommendation_not_string",
			text:     `{"message":"m","recommendations":["ok",7]}`,
			wantMsg:  `{"message":"m","recommendations":["ok",7]}`,
			wantRecs: []string{},
		},
		{
			name:     "plain_text",
			text:     "  Everything looks fine.  ",
			wantMsg:  "Everything looks fine.",
			wantRecs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResponse(tt.text)
			assert.Equal(t, tt.wantMsg, got.Message)
			assert.Equal(t, tt.wantRecs, got.Recommendations)
			assert.Equal(t, types.InsightSourceProvider, got.Source)
		})
	}
}

func TestParseResponse_TruncatesRawTextByRunes(t *testing.T) {
	text := strings.Repeat("é", 150)
	got := ParseResponse(text)
	assert.Equal(t, MaxMessageRunes, len([]rune(got.Message)))
}
