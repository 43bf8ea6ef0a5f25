package contract

import (
	"encoding/json"
	"testing"

	"github.com/form3tech-oss/pact-mock-service/internal/app/matchers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchingRulesV2(t *testing.T) {
	i, err := ParseInteraction([]byte(`{
		"description": "A request to create an address",
		"request": {
			"method": "POST",
			"path": "/addresses",
			"body": {"id": "abc-123", "count": 3},
			"matchingRules": {
				"$.body.id": {"regex": "^[a-z]+-\\d+$"},
				"$.body.count": {"match": "type"}
			}
		},
		"response": {"status": 200}
	}`))
	require.NoError(t, err)

	want := matchers.NewObject(
		matchers.Field{Key: "count", Value: matchers.Like{Example: json.Number("3")}},
		matchers.Field{Key: "id", Value: matchers.Term{Example: "abc-123", Pattern: `^[a-z]+-\d+$`}},
	)
	assert.Equal(t, want, i.Request.Body.Matcher())

	assert.True(t, i.Request.Matches(NewActualRequest("POST", "/addresses", "", nil,
		map[string]interface{}{"id": "xyz-9", "count": float64(10)})))
	assert.False(t, i.Request.Matches(NewActualRequest("POST", "/addresses", "", nil,
		map[string]interface{}{"id": "9", "count": float64(10)})))
}

func TestMatchingRulesV3(t *testing.T) {
	i, err := ParseInteraction([]byte(`{
		"description": "A request for an address",
		"request": {"method": "GET", "path": "/addresses/1"},
		"response": {
			"status": 200,
			"body": {"name": "home", "lines": [{"number": "42"}]},
			"matchingRules": {
				"body": {
					"$.name": {"matchers": [{"match": "type"}]},
					"$.lines[0].number": {"matchers": [{"match": "regex", "regex": "\\d+"}], "combine": "AND"}
				}
			}
		}
	}`))
	require.NoError(t, err)

	diffs := i.Response.Difference(ActualResponse{
		Status: 200,
		Body: map[string]interface{}{
			"name":  "work",
			"lines": []interface{}{map[string]interface{}{"number": "7"}},
		},
	})
	assert.True(t, diffs.Empty(), diffs.String())

	diffs = i.Response.Difference(ActualResponse{
		Status: 200,
		Body: map[string]interface{}{
			"name":  "work",
			"lines": []interface{}{map[string]interface{}{"number": "seven"}},
		},
	})
	require.Len(t, diffs, 1)
	assert.Equal(t, `$.body.lines[0].number`, diffs[0].Path.String())
}

func TestMatchingRuleOnWholeBody(t *testing.T) {
	i, err := ParseInteraction([]byte(`{
		"description": "A plain text request",
		"request": {
			"method": "POST",
			"path": "/notes",
			"body": "some note",
			"matchingRules": {"$.body": {"match": "type"}}
		},
		"response": {"status": 201}
	}`))
	require.NoError(t, err)
	assert.Equal(t, matchers.Like{Example: "some note"}, i.Request.Body.Matcher())
}

func TestMatchingRuleErrors(t *testing.T) {
	_, err := ParseInteraction([]byte(`{
		"description": "A request to create an address",
		"request": {
			"method": "POST",
			"path": "/addresses",
			"body": {"count": 3},
			"matchingRules": {"$.body.count": {"regex": "\\d+"}}
		},
		"response": {"status": 200}
	}`))
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr), "unexpected error %v", err)
	assert.Equal(t, "$.request.matchingRules", parseErr.Path)
}

func TestMatchingRuleOnUnknownPathIsIgnored(t *testing.T) {
	i, err := ParseInteraction([]byte(`{
		"description": "A request to create an address",
		"request": {
			"method": "POST",
			"path": "/addresses",
			"body": {"count": 3},
			"matchingRules": {"$.body.invalid.path": {"match": "type"}}
		},
		"response": {"status": 200}
	}`))
	require.NoError(t, err)
	assert.Equal(t, matchers.From(map[string]interface{}{"count": 3}), i.Request.Body.Matcher())
}

func TestSjsonPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ""},
		{in: ".a.b", want: "a.b"},
		{in: ".items[0].id", want: "items.0.id"},
		{in: `['content.type']`, want: `content\.type`},
		{in: ".items[*]", wantErr: true},
		{in: ".*", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := sjsonPath(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
