package repository

import (
	"embed"
	"fmt"
)

//go:embed schema/*.sql
var schemas embed.FS

func schema(name string) (string, error) {
	b, err := schemas.ReadFile("schema/" + name + ".sql")
	if err != nil {
		return "", fmt.Errorf("read schema %s: %w", name, err)
	}
	return string(b), nil
}
