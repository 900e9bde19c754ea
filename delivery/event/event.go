package event

import (
	"fmt"
	"regexp"
)

// typePattern validates event types: hierarchical, full-stop delimited, [a-zA-Z0-9_.]
var typePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

/* Matching rules for endpoint subscriptions:
 *   "*"           matches every event type
 *   "project.created" matches only that exact type
 *   "project.*"   matches every type under the dot-terminated prefix,
 *                 so "project.created" matches but "projectfile.created"
 *                 and the bare "project" do not
 *
 * An empty subscription list matches nothing; malformed patterns never
 * match.
 */

// Matches reports whether any of the subscribed patterns covers eventType.
func Matches(subscribed []string, eventType string) bool {
	for _, pattern := range subscribed {
		// Wildcard subscription
		if pattern == "*" {
			return true
		}

		// Exact match
		if pattern == eventType {
			return true
		}

		// Prefix match (e.g., "project.*" matches "project.created")
		if len(pattern) > 2 && pattern[len(pattern)-2:] == ".*" {
			prefix := pattern[:len(pattern)-2]
			if len(eventType) > len(prefix) && eventType[:len(prefix)] == prefix && eventType[len(prefix)] == '.' {
				return true
			}
		}
	}

	return false
}

// ValidateType validates an event type format (no wildcards allowed)
func ValidateType(eventType string) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}

	if !typePattern.MatchString(eventType) {
		return fmt.Errorf("event type must be hierarchical and contain only [a-zA-Z0-9_.]: %s", eventType)
	}

	return nil
}

// ValidatePattern validates a subscription pattern, allowing "*" and a
// ".*" suffix on top of plain event types
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("event pattern cannot be empty")
	}

	if pattern == "*" {
		return nil
	}

	if len(pattern) > 2 && pattern[len(pattern)-2:] == ".*" {
		pattern = pattern[:len(pattern)-2]
	}

	if !typePattern.MatchString(pattern) {
		return fmt.Errorf("event pattern must be hierarchical and contain only [a-zA-Z0-9_.]: %s", pattern)
	}

	return nil
}
