package main

import (
	"context"
	"fmt"

	"github.com/a-h/vectorserver"
)

type VersionCommand struct {
}

func (c VersionCommand) Run(ctx context.Context) (err error) {
	fmt.Println(vectorserver.Version)
	return nil
}
