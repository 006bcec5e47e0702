package provider

import (
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/api/googleapi"
)

const genericStreamError = "The model failed to respond. Please try again."

// friendlyMessage extracts a human-readable message from a transport failure:
// the API error's own message, a message nested in a JSON error body, or a
// generic fallback. Never returns an empty string.
func friendlyMessage(err error) string {
	if err == nil {
		return genericStreamError
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if msg := messageFromBody(apiErr.Body); msg != "" {
			return msg
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}

	if msg := messageFromBody(err.Error()); msg != "" {
		return msg
	}

	msg := strings.TrimSpace(err.Error())
	if msg == "" || strings.Contains(msg, "rpc error") {
		return genericStreamError
	}
	return msg
}

// messageFromBody digs a message field out of a JSON error body, tolerating
// both {"error": {"message": ...}} and flat {"message": ...} shapes.
func messageFromBody(body string) string {
	start := strings.Index(body, "{")
	if start < 0 {
		return ""
	}

	var payload struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body[start:]), &payload); err != nil {
		return ""
	}
	if payload.Error.Message != "" {
		return payload.Error.Message
	}
	return payload.Message
}
