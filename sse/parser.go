package sse

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/wanderer-industries/topologyd/errors"
	"github.com/wanderer-industries/topologyd/model"
)

var lineRE = regexp.MustCompile(`^(event|data|id): (.*)$`)

// splitBlocks splits buf on "\n\n" into complete event blocks plus any
// trailing partial block, which the caller should prepend to the next read.
func splitBlocks(buf []byte) (blocks [][]byte, remainder []byte) {
	parts := bytes.Split(buf, []byte("\n\n"))
	if len(parts) == 0 {
		return nil, buf
	}
	remainder = parts[len(parts)-1]
	for _, p := range parts[:len(parts)-1] {
		if len(bytes.TrimSpace(p)) > 0 {
			blocks = append(blocks, p)
		}
	}
	return blocks, remainder
}

// parseBlock decodes one "event:"/"data:"/"id:" block into a fully-formed
// EventEnvelope. Multiple data lines concatenate with "\n" before JSON
// decoding; type and id are overlaid onto the decoded payload.
func parseBlock(block []byte) (model.EventEnvelope, error) {
	var eventName, id string
	var dataLines []string

	for _, line := range strings.Split(string(block), "\n") {
		m := lineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		switch m[1] {
		case "event":
			eventName = m[2]
		case "id":
			id = m[2]
		case "data":
			dataLines = append(dataLines, m[2])
		}
	}

	if len(dataLines) == 0 {
		return model.EventEnvelope{}, errors.New("sse: block has no data lines")
	}

	payload := make(map[string]any)
	if err := json.Unmarshal([]byte(strings.Join(dataLines, "\n")), &payload); err != nil {
		return model.EventEnvelope{}, errors.Wrap(err, "sse: decoding event payload")
	}

	env := model.EventEnvelope{ID: id, Type: eventName}
	if v, ok := payload["type"].(string); ok && v != "" {
		env.Type = v
	}
	if v, ok := payload["id"].(string); ok && v != "" {
		env.ID = v
	}
	if v, ok := payload["map_id"].(string); ok {
		env.MapID = v
	}

	if env.Type == "connected" {
		if st, ok := payload["server_time"].(string); ok {
			if t, err := time.Parse(time.RFC3339, st); err == nil {
				env.ServerTime = &t
			}
		}
		return env, nil
	}

	if ts, ok := payload["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			env.Timestamp = &t
		}
	}
	if p, ok := payload["payload"].(map[string]any); ok {
		env.Payload = p
	}

	return env, nil
}

// validate enforces the required-field rules: connected needs
// {id, type, map_id, server_time}; everything else needs
// {id, type, map_id, timestamp, payload}.
func validate(env model.EventEnvelope) error {
	if env.ID == "" || env.Type == "" || env.MapID == "" {
		return errors.New("sse: event missing id/type/map_id")
	}
	if env.Type == "connected" {
		if env.ServerTime == nil {
			return errors.New("sse: connected event missing server_time")
		}
		return nil
	}
	if env.Timestamp == nil {
		return errors.New("sse: event missing timestamp")
	}
	if env.Payload == nil {
		return errors.New("sse: event missing payload")
	}
	return nil
}
