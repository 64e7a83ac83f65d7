package config

import (
	"embed"
	"os"

	"gopkg.in/yaml.v3"

	"capsense-go/errcode"
)

//go:embed boards/*.yaml
var boards embed.FS

// Parse decodes, normalizes and validates a board document.
func Parse(data []byte) (Board, error) {
	var b Board
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Board{}, &errcode.E{C: errcode.InvalidConfig, Op: "config.Parse", Err: err}
	}
	Normalize(&b)
	if err := Validate(&b); err != nil {
		return Board{}, err
	}
	return b, nil
}

// Embedded loads one of the boards compiled into the binary.
func Embedded(name string) (Board, error) {
	data, err := boards.ReadFile("boards/" + name + ".yaml")
	if err != nil {
		return Board{}, &errcode.E{C: errcode.UnknownBoard, Op: "config.Embedded", Msg: name}
	}
	return Parse(data)
}

// File loads a board from disk (host builds).
func File(path string) (Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Board{}, &errcode.E{C: errcode.InvalidConfig, Op: "config.File", Msg: path, Err: err}
	}
	return Parse(data)
}

// Names lists the embedded boards.
func Names() []string {
	ents, _ := boards.ReadDir("boards")
	out := make([]string, 0, len(ents))
	for _, e := range ents {
		n := e.Name()
		if len(n) > 5 && n[len(n)-5:] == ".yaml" {
			out = append(out, n[:len(n)-5])
		}
	}
	return out
}
