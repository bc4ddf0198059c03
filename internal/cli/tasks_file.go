package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ReadTasksFile читает список запросов на tasks из JSON или YAML.
//
// Допустимы массив запросов или объект с полем tasks:
//
//	tasks:
//	  - name: StartUp
//	    client_type: Bilibili
//	  - name: Fight
//	    stage: 1-7
func ReadTasksFile(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseTasks(data)
}

// ParseTasks разбирает содержимое файла tasks. JSON — подмножество
// YAML, поэтому оба формата идут через yaml.v3.
func ParseTasks(data []byte) ([]json.RawMessage, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tasks: %w", err)
	}

	if m, ok := doc.(map[string]any); ok {
		doc = m["tasks"]
	}
	items, ok := doc.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("parse tasks: expected a non-empty list of tasks")
	}

	raws := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		if _, ok := item.(map[string]any); !ok {
			return nil, fmt.Errorf("parse tasks: task %d is not an object", i)
		}
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("parse tasks: task %d: %w", i, err)
		}
		raws = append(raws, data)
	}
	return raws, nil
}
