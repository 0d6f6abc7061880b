package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/scriptcast/pkg/types"
)

// scriptFile is the object form of a script document. A bare list of turns is
// accepted as well.
type scriptFile struct {
	Turns []types.DialogueTurn `yaml:"turns"`
}

// loadScript reads the script at path. "-" reads from stdin.
func loadScript(path string, stdin io.Reader) ([]types.DialogueTurn, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	turns, err := parseScript(data)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	return turns, nil
}

// parseScript decodes a YAML or JSON script. JSON is valid YAML, so one
// decoder covers both.
func parseScript(data []byte) ([]types.DialogueTurn, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, errors.New("empty script")
	}

	doc := node.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		var turns []types.DialogueTurn
		if err := doc.Decode(&turns); err != nil {
			return nil, fmt.Errorf("decode turns: %w", err)
		}
		return turns, nil
	case yaml.MappingNode:
		var f scriptFile
		if err := doc.Decode(&f); err != nil {
			return nil, fmt.Errorf("decode turns: %w", err)
		}
		return f.Turns, nil
	}
	return nil, errors.New("script must be a list of turns or an object with a turns list")
}
