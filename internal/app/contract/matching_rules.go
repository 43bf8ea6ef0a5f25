package contract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/form3tech-oss/pact-mock-service/internal/app/matchers"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
)

// applyMatchingRules rewrites the body of a request or response carrying pact v2/v3 style
// matchingRules so that every rule becomes a Pact::Term or Pact::SomethingLike node at the
// location it names. The matchingRules key is removed afterwards.
func applyMatchingRules(part map[string]interface{}, path string) error {
	matchingRules := getMatchingRules(part)
	if len(matchingRules) == 0 {
		return nil
	}
	delete(part, "matchingRules")

	if hasPathRule(matchingRules) {
		log.Infof("path matching rules are not supported, %s.path is matched literally", path)
	}

	rules := getBodyMatchingRules(matchingRules)
	body, hasBody := part["body"]
	if !hasBody || len(rules) == 0 {
		return nil
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return &ParseError{Path: path + ".body", Err: err}
	}
	document := map[string]interface{}{"body": body}

	// deepest paths first, so a rule on a parent wraps the already rewritten children
	rulePaths := make([]string, 0, len(rules))
	for p := range rules {
		rulePaths = append(rulePaths, p)
	}
	sort.Slice(rulePaths, func(i, j int) bool {
		if len(rulePaths[i]) != len(rulePaths[j]) {
			return len(rulePaths[i]) > len(rulePaths[j])
		}
		return rulePaths[i] < rulePaths[j]
	})

	for _, rulePath := range rulePaths {
		example, err := jsonpath.Get(rulePath, document)
		if err != nil {
			log.Warnf("matching rule %s does not resolve in %s: %s", rulePath, path, err)
			continue
		}

		node, err := matcherNode(rules[rulePath], example)
		if err != nil {
			return parseErrorf(path+".matchingRules", "%s: %s", rulePath, err)
		}
		if node == nil {
			log.Warnf("unsupported matching rule %v for %s in %s", rules[rulePath], rulePath, path)
			continue
		}

		target, err := sjsonPath(strings.TrimPrefix(rulePath, "$.body"))
		if err != nil {
			log.Warnf("matching rule %s in %s cannot be applied: %s", rulePath, path, err)
			continue
		}
		if target == "" {
			raw = node
			continue
		}
		raw, err = sjson.SetRawBytes(raw, target, node)
		if err != nil {
			return parseErrorf(path+".matchingRules", "%s: %s", rulePath, err)
		}
	}

	var rewritten interface{}
	if err := unmarshal(raw, &rewritten); err != nil {
		return &ParseError{Path: path + ".body", Err: err}
	}
	part["body"] = rewritten
	return nil
}

func getMatchingRules(part map[string]interface{}) map[string]interface{} {
	rules, ok := part["matchingRules"].(map[string]interface{})
	if !ok {
		return nil
	}
	return rules
}

func hasPathRule(matchingRules map[string]interface{}) bool {
	_, v2 := matchingRules["$.path"]
	_, v3 := matchingRules["path"]
	return v2 || v3
}

// getBodyMatchingRules collects body rules keyed by their JSONPath from the document root.
// It understands both v2 style rules ("$.body.data.id": { "regex": "<exp>" }) and v3 style
// rules ("body": { "$.data.id": { "matchers": [...] } }).
func getBodyMatchingRules(matchingRules map[string]interface{}) map[string]map[string]interface{} {
	results := map[string]map[string]interface{}{}
	for k, v := range matchingRules {
		if strings.HasPrefix(k, "$.body") {
			if rule, ok := v.(map[string]interface{}); ok {
				results[k] = rule
			}
		} else if k == "body" {
			properties, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			for propertyName, rules := range properties {
				if rule := firstMatcher(rules); rule != nil {
					results["$.body"+strings.TrimPrefix(propertyName, "$")] = rule
				}
			}
		}
	}
	return results
}

func firstMatcher(rules interface{}) map[string]interface{} {
	s, ok := rules.(map[string]interface{})
	if !ok {
		return nil
	}
	list, ok := s["matchers"].([]interface{})
	if !ok || len(list) == 0 {
		return nil
	}
	rule, _ := list[0].(map[string]interface{})
	return rule
}

func matcherNode(rule map[string]interface{}, example interface{}) ([]byte, error) {
	match, _ := rule["match"].(string)
	pattern, hasRegex := rule["regex"].(string)

	switch {
	case hasRegex && (match == "" || match == "regex"):
		s, ok := example.(string)
		if !ok {
			return nil, errors.Errorf("regex rule applies to %s value", matchers.KindOf(example))
		}
		term, err := matchers.NewTerm(s, pattern)
		if err != nil {
			return nil, err
		}
		return json.Marshal(term)
	case match == "type":
		return json.Marshal(matchers.Like{Example: example})
	}
	return nil, nil
}

var sjsonEscaper = strings.NewReplacer(
	`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`,
)

// sjsonPath converts the remainder of a JSONPath (".a.b[0]['c']") to sjson syntax ("a.b.0.c").
func sjsonPath(jsonPath string) (string, error) {
	var segments []string
	for i := 0; i < len(jsonPath); {
		switch jsonPath[i] {
		case '.':
			j := i + 1
			for j < len(jsonPath) && jsonPath[j] != '.' && jsonPath[j] != '[' {
				j++
			}
			name := jsonPath[i+1 : j]
			if name == "" || name == "*" {
				return "", fmt.Errorf("unsupported path segment at %d", i)
			}
			segments = append(segments, sjsonEscaper.Replace(name))
			i = j
		case '[':
			end := strings.IndexByte(jsonPath[i:], ']')
			if end < 0 {
				return "", fmt.Errorf("unterminated bracket at %d", i)
			}
			inner := jsonPath[i+1 : i+end]
			if len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[len(inner)-1] == inner[0] {
				segments = append(segments, sjsonEscaper.Replace(inner[1:len(inner)-1]))
			} else if _, err := strconv.Atoi(inner); err == nil {
				segments = append(segments, inner)
			} else {
				return "", fmt.Errorf("unsupported path segment [%s]", inner)
			}
			i += end + 1
		default:
			return "", fmt.Errorf("unexpected character %q at %d", jsonPath[i], i)
		}
	}
	return strings.Join(segments, "."), nil
}
